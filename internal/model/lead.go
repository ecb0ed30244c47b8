package model

// Signal names the field a parser trusts most in a lead.
type Signal string

const (
	SignalNIP      Signal = "nip"
	SignalWebsite  Signal = "website"
	SignalEmail    Signal = "email"
	SignalPhone    Signal = "phone"
	SignalNameCity Signal = "name_city"
	SignalNameOnly Signal = "name_only"
)

// Valid reports whether s is one of the known signals.
func (s Signal) Valid() bool {
	switch s {
	case SignalNIP, SignalWebsite, SignalEmail, SignalPhone, SignalNameCity, SignalNameOnly:
		return true
	}
	return false
}

// Lead is the best-effort structured extraction from raw free text. Every
// field is optional; an empty string means "not extracted", never "known
// to be empty".
type Lead struct {
	Raw       string   `json:"raw"`
	NIP       string   `json:"nip,omitempty"`
	REGON     string   `json:"regon,omitempty"`
	KRS       string   `json:"krs,omitempty"`
	Name      string   `json:"name,omitempty"`
	ShortName string   `json:"short_name,omitempty"`
	City      string   `json:"city,omitempty"`
	Street    string   `json:"street,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Email     string   `json:"email,omitempty"`
	Website   string   `json:"website,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`

	Confidence float64 `json:"confidence"`
	Strongest  Signal  `json:"strongest_signal,omitempty"`
}

// HasName reports whether a name or short name was extracted.
func (l *Lead) HasName() bool {
	return l.Name != "" || l.ShortName != ""
}

// DisplayName returns the registered name, falling back to the short name.
func (l *Lead) DisplayName() string {
	if l.Name != "" {
		return l.Name
	}
	return l.ShortName
}

// Empty reports whether nothing usable was extracted.
func (l *Lead) Empty() bool {
	return l.NIP == "" && l.Name == "" && l.ShortName == "" && l.City == "" &&
		l.Street == "" && l.Phone == "" && l.Email == "" && l.Website == ""
}
