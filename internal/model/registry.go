package model

// RegistryRecord is the canonical registry entry for a NIP.
type RegistryRecord struct {
	Found       bool   `json:"found"`
	NIP         string `json:"nip"`
	REGON       string `json:"regon,omitempty"`
	KRS         string `json:"krs,omitempty"`
	Name        string `json:"name,omitempty"`
	City        string `json:"city,omitempty"`
	Street      string `json:"street,omitempty"`
	Building    string `json:"building,omitempty"`
	Apartment   string `json:"apartment,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	Voivodeship string `json:"voivodeship,omitempty"`
}

// Address renders street, building and apartment as "Street 1/2".
func (r RegistryRecord) Address() string {
	addr := r.Street
	if r.Building != "" {
		addr += " " + r.Building
	}
	if r.Apartment != "" {
		addr += "/" + r.Apartment
	}
	return addr
}

// SearchHit is a NIP found by the web search cascade.
type SearchHit struct {
	NIP        string  `json:"nip"`
	Confidence float64 `json:"confidence"`
	SourceURL  string  `json:"source_url,omitempty"`
	Query      string  `json:"query,omitempty"`
}

// CRMAccount is an account record held by the CRM.
type CRMAccount struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	NIP            string `json:"nip,omitempty"`
	Website        string `json:"website,omitempty"`
	IsHeadquarters bool   `json:"is_headquarters"`
	IsBranch       bool   `json:"is_branch"`
	ParentID       string `json:"parent_id,omitempty"`
}
