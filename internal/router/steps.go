package router

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/crm"
	"github.com/sells-group/nip-resolver/internal/evidence"
	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
	"github.com/sells-group/nip-resolver/internal/parse"
	"github.com/sells-group/nip-resolver/internal/query"
	"github.com/sells-group/nip-resolver/internal/scrape"
	"github.com/sells-group/nip-resolver/internal/search"
)

// begin opens a step. The returned func stamps the duration and appends the
// step to the trace; every step calls it exactly once.
func (x *run) begin(name string) (*model.Step, func()) {
	st := &model.Step{Name: name}
	start := time.Now()
	return st, func() {
		st.Duration = time.Since(start)
		x.trace.AddStep(*st)
		x.log.Debug("router: step",
			zap.String("step", st.Name),
			zap.String("method", st.Method),
			zap.Bool("skipped", st.Skipped),
			zap.String("skip_reason", st.SkipReason),
			zap.String("note", st.Note),
			zap.String("best", st.Best),
			zap.Float64("cost_usd", st.CostUSD),
			zap.Duration("duration", st.Duration),
		)
	}
}

func (x *run) parse(ctx context.Context) {
	st, done := x.begin(model.StepParse)
	defer done()
	st.CostUSD = x.costs.Parse()

	out := call(ctx, x, "parse", func(ctx context.Context) model.Outcome[parse.Result] {
		return x.deps.Parser.Parse(ctx, x.trace.Raw)
	})
	if !out.OK {
		st.Method = parse.MethodRegexFallback
		st.Note = out.Reason
		x.setLead(st, parse.ParseText(x.trace.Raw))
		x.log.Warn("router: parser unavailable, using regex", zap.String("reason", out.Reason))
		return
	}
	st.Method = out.Value.Method
	st.Note = out.Value.FallbackReason
	x.setLead(st, out.Value.Lead)
}

func (x *run) setLead(st *model.Step, lead model.Lead) {
	lead.Raw = x.trace.Raw
	if lead.Strongest == "" {
		lead.Strongest = parse.Strongest(&lead)
	}
	x.lead = &lead
	x.trace.Lead = x.lead
	if !lead.Empty() {
		st.Results = 1
	}
}

func (x *run) checkID(ctx context.Context) *evidence.Candidate {
	st, done := x.begin(model.StepCheckID)
	defer done()

	if x.lead.NIP == "" {
		st.Skip("no NIP in input")
		return nil
	}
	st.Method = "checksum"
	c := x.candidate(x.lead.NIP, model.StepCheckID)
	st.Query = c.NIP
	st.CandidatesFound = 1
	st.Best = c.NIP
	if !x.scorer.ValidateChecksum(c) {
		return c
	}

	st.Method = "checksum+registry"
	found := x.confirm(ctx, st, c)
	st.CostUSD = x.costs.Registry(found)
	x.scorer.MakeDecision(c)
	return c
}

func (x *run) findWebsite(ctx context.Context, c *evidence.Candidate) {
	st, done := x.begin(model.StepFindWebsite)
	defer done()

	if x.lead.Website != "" {
		x.trace.Website = nip.NormalizeDomain(x.lead.Website)
		st.Skip("website already known")
		return
	}
	queries := x.builder.WebsiteQueries(x.lead, c.RegistryName, c.RegistryCity)
	if len(queries) == 0 {
		st.Skip("no name to search")
		return
	}
	st.Method = "website_search"
	st.Query = queries[0].Text

	out := call(ctx, x, "find website", func(ctx context.Context) model.Outcome[string] {
		return x.deps.Websites.FindWebsite(ctx, queries)
	})
	if !out.OK {
		st.Skip(out.Reason)
		return
	}
	if out.Value == "" {
		st.CostUSD = x.costs.Search(false)
		return
	}
	st.Results = 1
	st.Best = out.Value
	st.CostUSD = x.costs.Search(true)
	x.trace.Website = out.Value
}

func (x *run) lookupCRM(ctx context.Context) *evidence.Candidate {
	st, done := x.begin(model.StepLookupCRM)
	defer done()

	if x.skipCRM {
		st.Skip("skipped by request")
		return nil
	}
	keys := query.BuildCRMKeys(x.lead)
	if keys.Empty() {
		if x.lead.Email != "" && nip.IsPublicEmailDomain(nip.EmailDomain(x.lead.Email)) {
			st.Skip("no usable CRM key (public mailbox only)")
		} else {
			st.Skip("no phone, email or website")
		}
		return nil
	}
	st.Method = "crm"
	st.Query = describeKeys(keys)
	st.CostUSD = x.costs.CRM()

	id := call(ctx, x, "crm find", func(ctx context.Context) model.Outcome[string] {
		return x.deps.CRM.FindAccountID(ctx, keys)
	})
	if !id.OK {
		st.Skip(id.Reason)
		return nil
	}
	if id.Value == "" {
		st.Note = "no matching account"
		return nil
	}
	accts := call(ctx, x, "crm lookup", func(ctx context.Context) model.Outcome[[]model.CRMAccount] {
		return x.deps.CRM.LookupByID(ctx, id.Value)
	})
	if !accts.OK {
		st.Skip(accts.Reason)
		return nil
	}
	st.Results = len(accts.Value)
	acct, ok := crm.PreferredNIP(accts.Value)
	if !ok {
		st.Note = "account " + id.Value + " has no NIP"
		return nil
	}

	c := x.candidate(acct.NIP, model.StepLookupCRM)
	st.CandidatesFound = 1
	st.Best = c.NIP
	if !x.scorer.ValidateChecksum(c) {
		return c
	}
	st.CostUSD += x.costs.Validate()
	x.confirm(ctx, st, c)
	x.scorer.AddCRM(c, acct.Name)
	x.scorer.MakeDecision(c)
	return c
}

func (x *run) scrapeSite(ctx context.Context) *evidence.Candidate {
	st, done := x.begin(model.StepScrapeSite)
	defer done()

	if x.lead.Website == "" {
		st.Skip("no website")
		return nil
	}
	st.Method = "site_scrape"
	st.Query = x.lead.Website

	out := call(ctx, x, "scrape", func(ctx context.Context) model.Outcome[scrape.Hit] {
		return x.deps.Scraper.ScrapeForIdentifier(ctx, x.lead.Website)
	})
	if !out.OK {
		st.Skip(out.Reason)
		return nil
	}
	hit := out.Value
	st.Results = hit.Pages
	if hit.NIP == "" {
		st.CostUSD = x.costs.Scrape(false)
		return nil
	}
	st.CostUSD = x.costs.Scrape(true)

	c := x.candidate(hit.NIP, model.StepScrapeSite)
	st.CandidatesFound = 1
	st.Best = c.NIP
	if !x.scorer.ValidateChecksum(c) {
		return c
	}
	st.CostUSD += x.costs.Validate()
	x.confirm(ctx, st, c)
	domain := hit.Domain
	if domain == "" {
		domain = nip.NormalizeDomain(x.lead.Website)
	}
	x.scorer.AddDomain(c, domain)
	x.scorer.MakeDecision(c)
	return c
}

func (x *run) searchWeb(ctx context.Context) *evidence.Candidate {
	st, done := x.begin(model.StepSearchWeb)
	defer done()

	if x.skipSearch {
		st.Skip("skipped by request")
		return nil
	}
	if !x.lead.HasName() {
		st.Skip("no name to search")
		return nil
	}
	regName, regCity := x.registryHints()
	queries := x.builder.NIPQueries(x.lead, regName, regCity)
	if len(queries) == 0 {
		st.Skip("no queries")
		return nil
	}
	st.Method = "search_cascade"
	st.Query = queries[0].Text

	req := search.Request{
		Name:       x.lead.DisplayName(),
		City:       x.lead.City,
		DomainHint: x.domainHint(),
		Queries:    queries,
	}
	out := call(ctx, x, "search", func(ctx context.Context) model.Outcome[model.SearchHit] {
		return x.deps.Search.FindIdentifier(ctx, req)
	})
	if !out.OK {
		st.Skip(out.Reason)
		return nil
	}
	hit := out.Value
	if hit.NIP == "" {
		st.CostUSD = x.costs.Search(false)
		return nil
	}
	st.CostUSD = x.costs.Search(true)
	st.Results = 1
	if hit.Query != "" {
		st.Query = hit.Query
	}

	c := x.candidate(hit.NIP, model.StepSearchWeb)
	st.CandidatesFound = 1
	st.Best = c.NIP
	if !x.scorer.ValidateChecksum(c) {
		return c
	}
	x.confirm(ctx, st, c)
	x.scorer.AddSource(c, hit.SourceURL)
	x.scorer.MakeDecision(c)
	return c
}

// fallback picks the SUSPECT with the highest total. Ties keep the
// candidate seen first.
func (x *run) fallback() *evidence.Candidate {
	st, done := x.begin(model.StepFallback)
	defer done()
	st.Method = "best_suspect"

	var best *evidence.Candidate
	for _, c := range x.trace.Candidates {
		if c.Decision != evidence.Suspect {
			continue
		}
		st.CandidatesFound++
		if best == nil || c.Total() > best.Total() {
			best = c
		}
	}
	if best == nil {
		st.Note = "no SUSPECT candidate"
		return nil
	}
	st.Best = best.NIP
	x.log.Info("router: falling back to suspect",
		zap.String("nip", best.NIP),
		zap.Int("score", best.Total()),
		zap.Bool("name_mismatch", best.NameMismatch()),
	)
	return best
}

// candidate registers a new candidate for raw, normalized when possible.
func (x *run) candidate(raw, origin string) *evidence.Candidate {
	id := strings.TrimSpace(raw)
	if n, ok := nip.Normalize(raw); ok {
		id = n
	}
	c := evidence.NewCandidate(id)
	c.Origin = origin
	x.trace.AddCandidate(c)
	return c
}

// confirm looks c up in the registry and adds the registry evidence. An
// unavailable registry adds nothing and is noted on the step.
func (x *run) confirm(ctx context.Context, st *model.Step, c *evidence.Candidate) bool {
	out := call(ctx, x, "registry", func(ctx context.Context) model.Outcome[model.RegistryRecord] {
		return x.deps.Registry.Lookup(ctx, c.NIP)
	})
	if !out.OK {
		st.Note = out.Reason
		x.log.Warn("router: registry unavailable",
			zap.String("nip", c.NIP),
			zap.String("reason", out.Reason),
		)
		return false
	}
	rec := out.Value
	x.scorer.AddRegistry(c, evidence.RegistryFacts{
		Found:  rec.Found,
		Name:   rec.Name,
		City:   rec.City,
		Street: rec.Address(),
	}, x.lead.DisplayName())
	return rec.Found
}

// registryHints returns the registered name and city of the first
// candidate the registry knew.
func (x *run) registryHints() (string, string) {
	for _, c := range x.trace.Candidates {
		if c.RegistryName != "" {
			return c.RegistryName, c.RegistryCity
		}
	}
	return "", ""
}

func (x *run) domainHint() string {
	if x.lead.Website != "" {
		return nip.NormalizeDomain(x.lead.Website)
	}
	if d := nip.EmailDomain(x.lead.Email); d != "" && !nip.IsPublicEmailDomain(d) {
		return d
	}
	return ""
}

func describeKeys(k query.CRMKeys) string {
	var parts []string
	if k.Domain != "" {
		parts = append(parts, "domain="+k.Domain)
	}
	for _, p := range k.Phones {
		parts = append(parts, "phone="+p)
	}
	for _, d := range k.EmailDomains {
		parts = append(parts, "email_domain="+d)
	}
	return strings.Join(parts, " ")
}
