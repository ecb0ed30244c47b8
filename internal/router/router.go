// Package router runs the resolution policy: a strictly forward sequence of
// steps over one raw lead that stops at the first ACCEPT and records every
// step in a decision trace.
package router

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/config"
	"github.com/sells-group/nip-resolver/internal/cost"
	"github.com/sells-group/nip-resolver/internal/crm"
	"github.com/sells-group/nip-resolver/internal/evidence"
	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
	"github.com/sells-group/nip-resolver/internal/parse"
	"github.com/sells-group/nip-resolver/internal/query"
	"github.com/sells-group/nip-resolver/internal/registry"
	"github.com/sells-group/nip-resolver/internal/scrape"
	"github.com/sells-group/nip-resolver/internal/search"
)

// Deps are the collaborators the policy delegates to. Any of them may be
// nil; New substitutes a no-op that reports itself as not configured.
type Deps struct {
	Parser   parse.Parser
	Registry registry.Lookup
	CRM      crm.Lookup
	Scraper  scrape.Scraper
	Search   search.Finder
	Websites search.WebsiteFinder
}

// Option configures a Router.
type Option func(*Router)

// WithScorer overrides the evidence scorer.
func WithScorer(s *evidence.Scorer) Option {
	return func(r *Router) {
		if s != nil {
			r.scorer = s
		}
	}
}

// WithStepTimeout overrides the per-call timeout from config.
func WithStepTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// RunOption adjusts a single Resolve call.
type RunOption func(*settings)

type settings struct {
	skipCRM    bool
	skipSearch bool
}

// SkipCRM disables the CRM step for one call.
func SkipCRM(skip bool) RunOption {
	return func(s *settings) { s.skipCRM = s.skipCRM || skip }
}

// SkipSearch disables the web search step for one call.
func SkipSearch(skip bool) RunOption {
	return func(s *settings) { s.skipSearch = s.skipSearch || skip }
}

// Router resolves raw leads to NIPs. It holds no per-request state and is
// safe for concurrent use.
type Router struct {
	deps     Deps
	scorer   *evidence.Scorer
	costs    *cost.Calculator
	builder  *query.Builder
	timeout  time.Duration
	defaults settings
}

// New creates a Router from cfg and deps.
func New(cfg *config.Config, deps Deps, opts ...Option) *Router {
	if deps.Parser == nil {
		deps.Parser = parse.NewChain(nil, nil)
	}
	if deps.Registry == nil {
		deps.Registry = nopRegistry{}
	}
	if deps.CRM == nil {
		deps.CRM = nopCRM{}
	}
	if deps.Scraper == nil {
		deps.Scraper = nopScraper{}
	}
	if deps.Search == nil {
		deps.Search = nopSearch{}
	}
	if deps.Websites == nil {
		deps.Websites = nopWebsites{}
	}

	r := &Router{
		deps:    deps,
		scorer:  evidence.NewScorer(nil),
		costs:   cost.NewCalculator(cfg.Costs),
		builder: query.New(cfg.Router.MaxQueries),
		timeout: cfg.Router.StepTimeout(),
		defaults: settings{
			skipCRM:    cfg.Router.SkipCRM,
			skipSearch: cfg.Router.SkipSearch,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs the policy over raw and returns the complete trace. It never
// fails: collaborator errors, timeouts and panics degrade single steps.
func (r *Router) Resolve(ctx context.Context, raw string, opts ...RunOption) *model.Trace {
	s := r.defaults
	for _, opt := range opts {
		opt(&s)
	}

	trace := model.NewTrace(raw)
	run := &run{
		Router:   r,
		settings: s,
		trace:    trace,
		log:      zap.L().With(zap.String("trace_id", trace.ID.String())),
	}
	run.log.Info("router: resolving", zap.Int("raw_len", len(raw)))

	t := run.execute(ctx)

	run.log.Info("router: done",
		zap.String("outcome", string(t.Outcome)),
		zap.String("nip", t.NIP),
		zap.Strings("steps", t.StepNames()),
		zap.Float64("cost_usd", t.CostUSD),
		zap.Duration("duration", t.Duration),
	)
	return t
}

// run is the state of one Resolve call. It is never shared.
type run struct {
	*Router
	settings
	trace *model.Trace
	lead  *model.Lead
	log   *zap.Logger
}

func (x *run) execute(ctx context.Context) *model.Trace {
	x.parse(ctx)

	if c := x.checkID(ctx); accepted(c) {
		x.findWebsite(ctx, c)
		return x.finish(c, model.OutcomeResolved)
	}
	if c := x.lookupCRM(ctx); accepted(c) {
		return x.finish(c, model.OutcomeResolved)
	}
	if c := x.scrapeSite(ctx); accepted(c) {
		return x.finish(c, model.OutcomeResolved)
	}
	if c := x.searchWeb(ctx); accepted(c) {
		return x.finish(c, model.OutcomeResolved)
	}
	if c := x.fallback(); c != nil {
		return x.finish(c, model.OutcomeSuspect)
	}
	return x.finish(nil, model.OutcomeNotFound)
}

func (x *run) finish(c *evidence.Candidate, outcome model.TraceOutcome) *model.Trace {
	if x.trace.Website == "" && x.lead != nil && x.lead.Website != "" {
		x.trace.Website = nip.NormalizeDomain(x.lead.Website)
	}
	x.trace.Finish(c, outcome)
	return x.trace
}

func accepted(c *evidence.Candidate) bool {
	return c != nil && c.Decision == evidence.Accept
}
