// Package parse turns noisy free-text leads into structured signal bundles.
package parse

import (
	"context"

	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
)

// Parse methods recorded in the trace.
const (
	MethodLLM           = "llm"
	MethodRegex         = "regex"
	MethodRegexFallback = "regex_fallback"
)

// Result is a parsed lead and the method that produced it.
type Result struct {
	Lead   model.Lead `json:"lead"`
	Method string     `json:"method"`
	// FallbackReason explains why the primary parser was not used.
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Parser extracts a lead from raw text. Implementations never fail on
// malformed input; an unavailable outcome means the parser itself could
// not run.
type Parser interface {
	Parse(ctx context.Context, raw string) model.Outcome[Result]
}

// Chain tries the primary parser and falls back to the deterministic one
// when it is unavailable or extracts nothing.
type Chain struct {
	primary  Parser
	fallback Parser
}

// NewChain creates a chain. A nil primary means the fallback always runs.
func NewChain(primary Parser, fallback Parser) *Chain {
	if fallback == nil {
		fallback = NewRegex()
	}
	return &Chain{primary: primary, fallback: fallback}
}

// Parse implements Parser.
func (c *Chain) Parse(ctx context.Context, raw string) model.Outcome[Result] {
	reason := "no llm parser configured"
	if c.primary != nil {
		out := c.primary.Parse(ctx, raw)
		if out.OK && !out.Value.Lead.Empty() {
			return out
		}
		reason = out.Reason
		if out.OK {
			reason = "llm extracted nothing"
		}
	}

	out := c.fallback.Parse(ctx, raw)
	if out.OK {
		out.Value.Method = MethodRegexFallback
		out.Value.FallbackReason = reason
	}
	return out
}

// Strongest picks the signal a lead is most likely to resolve through.
func Strongest(l *model.Lead) model.Signal {
	switch {
	case l.NIP != "" && nip.ValidChecksum(l.NIP):
		return model.SignalNIP
	case l.Website != "":
		return model.SignalWebsite
	case l.Email != "" && !nip.IsPublicEmailDomain(nip.EmailDomain(l.Email)):
		return model.SignalEmail
	case l.Phone != "":
		return model.SignalPhone
	case l.HasName() && l.City != "":
		return model.SignalNameCity
	case l.HasName():
		return model.SignalNameOnly
	}
	return ""
}
