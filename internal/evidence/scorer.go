package evidence

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/fuzzy"
	"github.com/sells-group/nip-resolver/internal/nip"
)

// RegistryFacts is what the registry said about a candidate.
type RegistryFacts struct {
	Found  bool
	Name   string
	City   string
	Street string
}

// Inputs gathers every fact ScoreAndDecide can weigh for one NIP.
type Inputs struct {
	NIP       string
	Registry  RegistryFacts
	InputName string
	OnDomain  string // domain the NIP was printed on
	CRMFound  bool
	CRMName   string
	SourceURL string
	Origin    string
}

// Scorer applies the fixed evidence table. It is stateless apart from the
// source lists and safe for concurrent use.
type Scorer struct {
	lists *SourceLists
}

// NewScorer creates a scorer. A nil lists argument uses DefaultSourceLists.
func NewScorer(lists *SourceLists) *Scorer {
	if lists == nil {
		lists = DefaultSourceLists()
	}
	return &Scorer{lists: lists}
}

// Lists returns the source lists in use.
func (s *Scorer) Lists() *SourceLists {
	return s.lists
}

// ValidateChecksum is the hard gate. On failure the candidate is rejected
// for good and false is returned; callers must not add evidence afterwards.
func (s *Scorer) ValidateChecksum(c *Candidate) bool {
	if !nip.ValidChecksum(c.NIP) {
		c.reject(ReasonInvalidChecksum)
		zap.L().Warn("scorer: checksum failed", zap.String("nip", c.NIP))
		return false
	}
	c.Add(New(ChecksumOK, "checksum", c.NIP, "NIP checksum valid"))
	return true
}

// AddRegistry records a registry hit and, when an input name is known,
// whether it fuzzy-matches the registered name. A miss adds nothing.
func (s *Scorer) AddRegistry(c *Candidate, r RegistryFacts, inputName string) {
	if !r.Found {
		zap.L().Debug("scorer: registry miss", zap.String("nip", c.NIP))
		return
	}
	c.Add(New(RegistryHit, "registry", r.Name, "registry found: "+truncate(r.Name, 50)))
	c.RegistryName = r.Name
	c.RegistryCity = r.City
	c.RegistryStreet = r.Street

	if inputName == "" || r.Name == "" {
		return
	}
	score := fuzzy.Match(inputName, r.Name)
	if score >= fuzzy.Medium {
		c.Add(New(RegistryNameMatch, "registry_name_match", inputName+" ~ "+r.Name,
			fmt.Sprintf("fuzzy match: %.2f", score)))
		return
	}
	c.Add(New(RegistryNameMismatch, "registry_name_mismatch", inputName+" != "+r.Name,
		fmt.Sprintf("name mismatch: %.2f", score)))
	zap.L().Warn("scorer: registry name mismatch",
		zap.String("nip", c.NIP),
		zap.String("input_name", inputName),
		zap.String("registry_name", r.Name),
		zap.Float64("fuzzy", score),
	)
}

// AddDomain records that the NIP was printed on domain.
func (s *Scorer) AddDomain(c *Candidate, domain string) {
	c.Add(New(IDOnDomain, "domain_scrape", domain, "NIP found on "+domain))
}

// AddCRM records that the CRM already knows the NIP.
func (s *Scorer) AddCRM(c *Candidate, name string) {
	c.Add(New(CRMHit, "crm", name, "found in CRM: "+name))
}

// AddSource weighs the domain of the page where the NIP was seen.
// Unknown domains that look like the company's own site earn a small bonus;
// other unknown domains add nothing.
func (s *Scorer) AddSource(c *Candidate, sourceURL string) {
	domain := nip.DomainFromURL(sourceURL)
	if domain == "" {
		return
	}
	switch s.lists.Classify(domain) {
	case ClassBlacklist:
		c.Add(New(SourceBlacklist, "source_check", domain, "blacklisted source: "+domain))
	case ClassRegistry:
		c.Add(New(SourceRegistry, "source_check", domain, "registry source: "+domain))
	case ClassGreylist:
		c.Add(New(SourceGreylist, "source_check", domain, "greylist source: "+domain))
	default:
		if LooksOfficial(domain, c.RegistryName) {
			c.Add(New(SourceOfficial, "source_check", domain, "likely official: "+domain))
		}
	}
}

// MakeDecision decides c and logs the outcome.
func (s *Scorer) MakeDecision(c *Candidate) Decision {
	d := c.Decide()
	zap.L().Info("scorer: decision",
		zap.String("nip", c.NIP),
		zap.String("decision", string(d)),
		zap.Int("score", c.Total()),
		zap.Bool("hard_confirmation", c.HardConfirmation()),
		zap.Bool("name_mismatch", c.NameMismatch()),
		zap.String("reason", c.Reason),
	)
	return d
}

// ScoreAndDecide builds a candidate from in, gates it on the checksum,
// adds all applicable evidence in a fixed order and decides it.
func (s *Scorer) ScoreAndDecide(in Inputs) *Candidate {
	c := NewCandidate(in.NIP)
	c.Origin = in.Origin
	if !s.ValidateChecksum(c) {
		return c
	}
	s.AddRegistry(c, in.Registry, in.InputName)
	if in.OnDomain != "" {
		s.AddDomain(c, in.OnDomain)
	}
	if in.CRMFound {
		s.AddCRM(c, in.CRMName)
	}
	if in.SourceURL != "" {
		s.AddSource(c, in.SourceURL)
	}
	s.MakeDecision(c)
	return c
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
