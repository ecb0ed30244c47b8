package evidence

import (
	"fmt"
)

// Decision thresholds.
const (
	AcceptThreshold  = 50
	SuspectThreshold = 20
)

// Decision classifies a candidate.
type Decision string

const (
	Undecided Decision = ""
	Accept    Decision = "ACCEPT"
	Suspect   Decision = "SUSPECT"
	Reject    Decision = "REJECT"
)

// ReasonInvalidChecksum is the sticky reason set by the checksum gate.
const ReasonInvalidChecksum = "invalid NIP checksum"

// Evidence is one immutable fact about a candidate.
type Evidence struct {
	Kind   Kind   `json:"kind"`
	Source string `json:"source"`
	Value  string `json:"value,omitempty"`
	Score  int    `json:"score"`
	Detail string `json:"detail,omitempty"`
}

// New builds an Evidence record whose score comes from the kind table.
func New(kind Kind, source, value, detail string) Evidence {
	return Evidence{Kind: kind, Source: source, Value: value, Score: kind.Score(), Detail: detail}
}

// Candidate is one NIP under evaluation. It is owned by a single resolution
// and is not safe for concurrent use.
type Candidate struct {
	NIP            string     `json:"nip"`
	Evidence       []Evidence `json:"evidence"`
	Decision       Decision   `json:"decision,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	RegistryName   string     `json:"registry_name,omitempty"`
	RegistryCity   string     `json:"registry_city,omitempty"`
	RegistryStreet string     `json:"registry_street,omitempty"`
	Origin         string     `json:"origin,omitempty"`
}

// NewCandidate starts an undecided candidate.
func NewCandidate(nip string) *Candidate {
	return &Candidate{NIP: nip}
}

// Add appends evidence. It has no other effect.
func (c *Candidate) Add(e Evidence) {
	c.Evidence = append(c.Evidence, e)
}

// Total is the unbounded sum of all evidence scores.
func (c *Candidate) Total() int {
	total := 0
	for _, e := range c.Evidence {
		total += e.Score
	}
	return total
}

// Has reports whether any evidence of kind k was recorded.
func (c *Candidate) Has(k Kind) bool {
	for _, e := range c.Evidence {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// HardConfirmation reports whether a registry hit, an on-domain hit or a
// CRM hit was recorded.
func (c *Candidate) HardConfirmation() bool {
	for _, e := range c.Evidence {
		if e.Kind.Hard() {
			return true
		}
	}
	return false
}

// NameMismatch reports whether the registry name contradicted the input name.
func (c *Candidate) NameMismatch() bool {
	return c.Has(RegistryNameMismatch)
}

// Rejected reports whether the candidate is finally rejected.
func (c *Candidate) Rejected() bool {
	return c.Decision == Reject
}

// reject is the checksum gate. The decision it sets is never revisited.
func (c *Candidate) reject(reason string) {
	c.Decision = Reject
	c.Reason = reason
}

// Decide derives the decision from the accumulated evidence. A REJECT that
// is already set is returned unchanged. Deciding a candidate that has no
// evidence at all is a caller bug and panics.
func (c *Candidate) Decide() Decision {
	if c.Decision == Reject {
		return c.Decision
	}
	if len(c.Evidence) == 0 {
		panic(fmt.Sprintf("evidence: decide called on candidate %q without evidence", c.NIP))
	}

	total := c.Total()
	hard := c.HardConfirmation()
	mismatch := c.NameMismatch()

	switch {
	case total >= AcceptThreshold && hard && !mismatch:
		c.Decision = Accept
		c.Reason = fmt.Sprintf("score %d >= %d, hard confirmation present", total, AcceptThreshold)
	case total >= SuspectThreshold:
		c.Decision = Suspect
		switch {
		case mismatch:
			c.Reason = fmt.Sprintf("score %d, but name mismatch - needs additional confirmation", total)
		case !hard:
			c.Reason = fmt.Sprintf("score %d, but no hard confirmation", total)
		default:
			c.Reason = fmt.Sprintf("score %d < %d", total, AcceptThreshold)
		}
	default:
		c.Decision = Reject
		c.Reason = fmt.Sprintf("score %d < %d", total, SuspectThreshold)
	}
	return c.Decision
}
