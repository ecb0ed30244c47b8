// Package evidence accumulates weighted facts about a candidate NIP and
// classifies it as ACCEPT, SUSPECT or REJECT.
package evidence

import (
	"github.com/rotisserie/eris"
)

// Kind is the closed set of evidence types. Each kind carries a fixed score.
type Kind int

const (
	ChecksumOK Kind = iota + 1
	RegistryHit
	RegistryNameMatch
	RegistryNameMismatch
	IDOnDomain
	CRMHit
	SourceRegistry
	SourceOfficial
	SourceGreylist
	SourceBlacklist
)

var kindInfo = map[Kind]struct {
	name  string
	score int
}{
	ChecksumOK:           {"CHECKSUM_OK", 10},
	RegistryHit:          {"REGISTRY_HIT", 30},
	RegistryNameMatch:    {"REGISTRY_NAME_MATCH", 15},
	RegistryNameMismatch: {"REGISTRY_NAME_MISMATCH", -20},
	IDOnDomain:           {"ID_ON_DOMAIN", 25},
	CRMHit:               {"CRM_HIT", 25},
	SourceRegistry:       {"SOURCE_REGISTRY_DOMAIN", 15},
	SourceOfficial:       {"SOURCE_LIKELY_OFFICIAL", 10},
	SourceGreylist:       {"SOURCE_GREYLIST", -5},
	SourceBlacklist:      {"SOURCE_BLACKLIST", -30},
}

// Kinds lists every evidence kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		ChecksumOK, RegistryHit, RegistryNameMatch, RegistryNameMismatch, IDOnDomain,
		CRMHit, SourceRegistry, SourceOfficial, SourceGreylist, SourceBlacklist,
	}
}

// Score returns the fixed contribution of k. Unknown kinds score 0.
func (k Kind) Score() int {
	return kindInfo[k].score
}

// Hard reports whether k alone is strong enough to justify acceptance.
func (k Kind) Hard() bool {
	return k == RegistryHit || k == IDOnDomain || k == CRMHit
}

func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return "UNKNOWN"
}

// MarshalText renders the kind by name in JSON output.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindInfo[k]; !ok {
		return nil, eris.Errorf("evidence: unknown kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for _, kind := range Kinds() {
		if kindInfo[kind].name == string(b) {
			*k = kind
			return nil
		}
	}
	return eris.Errorf("evidence: unknown kind %q", string(b))
}
