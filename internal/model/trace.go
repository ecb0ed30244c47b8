package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/nip-resolver/internal/evidence"
)

// Step names, in the order the router attempts them.
const (
	StepParse       = "parse"
	StepCheckID     = "check_id"
	StepFindWebsite = "find_website"
	StepLookupCRM   = "lookup_crm"
	StepScrapeSite  = "scrape_site"
	StepSearchWeb   = "search_web"
	StepFallback    = "fallback"
)

// TraceOutcome summarizes how a resolution ended.
type TraceOutcome string

const (
	OutcomeResolved TraceOutcome = "resolved"
	OutcomeSuspect  TraceOutcome = "suspect"
	OutcomeNotFound TraceOutcome = "not_found"
)

// Step is one attempted strategy within a trace.
type Step struct {
	Name            string        `json:"name"`
	Method          string        `json:"method,omitempty"`
	Skipped         bool          `json:"skipped"`
	SkipReason      string        `json:"skip_reason,omitempty"`
	Note            string        `json:"note,omitempty"` // degradation of a step that still ran
	Results         int           `json:"results"`
	CandidatesFound int           `json:"candidates_found"`
	Best            string        `json:"best,omitempty"`
	Query           string        `json:"query,omitempty"`
	Duration        time.Duration `json:"duration_ns"`
	CostUSD         float64       `json:"cost_usd"`
}

// Skip marks the step as skipped with the given reason.
func (s *Step) Skip(reason string) {
	s.Skipped = true
	s.SkipReason = reason
}

// Trace is the ordered audit log of one resolution attempt. A trace is
// owned by the single Resolve call that created it and is never shared.
type Trace struct {
	ID         uuid.UUID             `json:"id"`
	Raw        string                `json:"raw"`
	Lead       *Lead                 `json:"lead,omitempty"`
	Steps      []Step                `json:"steps"`
	Candidates []*evidence.Candidate `json:"candidates"`
	Outcome    TraceOutcome          `json:"outcome"`
	NIP        string                `json:"nip,omitempty"`
	Decision   evidence.Decision     `json:"decision,omitempty"`
	Reason     string                `json:"reason,omitempty"`
	Website    string                `json:"website,omitempty"`
	StartedAt  time.Time             `json:"started_at"`
	Duration   time.Duration         `json:"duration_ns"`
	CostUSD    float64               `json:"cost_usd"`
}

// NewTrace starts a trace for raw input.
func NewTrace(raw string) *Trace {
	return &Trace{
		ID:        uuid.New(),
		Raw:       raw,
		Outcome:   OutcomeNotFound,
		StartedAt: time.Now(),
	}
}

// AddStep appends a step and accumulates its cost.
func (t *Trace) AddStep(s Step) {
	t.Steps = append(t.Steps, s)
	t.CostUSD += s.CostUSD
}

// AddCandidate records a candidate considered during the run.
func (t *Trace) AddCandidate(c *evidence.Candidate) {
	t.Candidates = append(t.Candidates, c)
}

// Candidate returns the first candidate recorded for nip, or nil.
func (t *Trace) Candidate(nip string) *evidence.Candidate {
	for _, c := range t.Candidates {
		if c.NIP == nip {
			return c
		}
	}
	return nil
}

// StepNames lists step names in attempted order.
func (t *Trace) StepNames() []string {
	names := make([]string, len(t.Steps))
	for i, s := range t.Steps {
		names[i] = s.Name
	}
	return names
}

// Finish sets the final answer from c and stamps the elapsed time.
// A nil candidate leaves the trace as not found.
func (t *Trace) Finish(c *evidence.Candidate, outcome TraceOutcome) {
	if c != nil {
		t.NIP = c.NIP
		t.Decision = c.Decision
		t.Reason = c.Reason
		t.Outcome = outcome
	} else {
		t.Outcome = OutcomeNotFound
	}
	t.Duration = time.Since(t.StartedAt)
}

// Resolved reports whether an ACCEPT was reached.
func (t *Trace) Resolved() bool {
	return t.Outcome == OutcomeResolved
}
