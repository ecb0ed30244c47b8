// Package search finds NIPs and official websites through web search.
// Snippets are mined without visiting result pages; an answer engine with
// cited sources is the last resort.
package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/evidence"
	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
	"github.com/sells-group/nip-resolver/internal/query"
	"github.com/sells-group/nip-resolver/internal/registry"
	"github.com/sells-group/nip-resolver/internal/resilience"
	"github.com/sells-group/nip-resolver/pkg/jina"
	"github.com/sells-group/nip-resolver/pkg/perplexity"
)

// Hit confidences by where the NIP was seen.
const (
	ConfidenceRegistry = 0.95
	ConfidenceOwnSite  = 0.9
	ConfidenceUnknown  = 0.7
	ConfidenceGreylist = 0.6
	ConfidenceAnswer   = 0.6
)

// Request is one identifier search. Queries, when set, are used as given;
// otherwise they are built from Name and City.
type Request struct {
	Name       string
	City       string
	DomainHint string
	Queries    []query.Query
}

// Finder searches the web for a company's NIP.
type Finder interface {
	// FindIdentifier returns Ok with an empty NIP when the search ran and
	// found nothing, and Unavailable when no search could run.
	FindIdentifier(ctx context.Context, req Request) model.Outcome[model.SearchHit]
}

// Option configures a Cascade.
type Option func(*Cascade)

// WithPerplexity adds the answer engine as the final stage.
func WithPerplexity(p perplexity.Client) Option {
	return func(c *Cascade) { c.answers = p }
}

// WithRegistry drops candidates the registry does not know.
func WithRegistry(r registry.Lookup) Option {
	return func(c *Cascade) { c.registry = r }
}

// WithSourceLists sets the domain lists used to weigh result URLs.
func WithSourceLists(l *evidence.SourceLists) Option {
	return func(c *Cascade) {
		if l != nil {
			c.lists = l
		}
	}
}

// WithMaxQueries caps queries built from a request.
func WithMaxQueries(n int) Option {
	return func(c *Cascade) { c.builder = query.New(n) }
}

// WithGuards runs each provider under its own guard.
func WithGuards(gs *resilience.Guards) Option {
	return func(c *Cascade) {
		c.searchGuard = gs.Get("jina")
		c.answerGuard = gs.Get("perplexity")
	}
}

// Cascade implements Finder and WebsiteFinder.
type Cascade struct {
	web      jina.Client
	answers  perplexity.Client
	registry registry.Lookup
	lists    *evidence.SourceLists
	builder  *query.Builder

	searchGuard *resilience.Guard
	answerGuard *resilience.Guard
}

// New creates a cascade over the web search client. Either provider may be
// nil; with neither, every call is unavailable.
func New(web jina.Client, opts ...Option) *Cascade {
	c := &Cascade{
		web:         web,
		lists:       evidence.DefaultSourceLists(),
		builder:     query.New(query.DefaultMax),
		searchGuard: resilience.NewGuard("jina", resilience.BreakerConfig{}, resilience.DefaultRetryPolicy()),
		answerGuard: resilience.NewGuard("perplexity", resilience.BreakerConfig{}, resilience.DefaultRetryPolicy()),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FindIdentifier implements Finder.
func (c *Cascade) FindIdentifier(ctx context.Context, req Request) model.Outcome[model.SearchHit] {
	if c.web == nil && c.answers == nil {
		return model.Unavailable[model.SearchHit]("search: no provider configured")
	}
	queries := req.Queries
	if len(queries) == 0 && req.Name != "" {
		queries = c.builder.NIPQueries(&model.Lead{Name: req.Name, City: req.City}, "", "")
	}
	if len(queries) == 0 {
		return model.Unavailable[model.SearchHit]("search: nothing to search for")
	}

	ran := false
	var lastErr error
	if c.web != nil {
		for _, q := range queries {
			resp, err := c.searchWeb(ctx, q.Text)
			if err != nil {
				lastErr = err
				if ctx.Err() != nil {
					break
				}
				continue
			}
			ran = true
			if hit, ok := c.mine(ctx, resp.Data, req.DomainHint); ok {
				hit.Query = q.Text
				zap.L().Info("search: nip found in snippets",
					zap.String("nip", hit.NIP),
					zap.String("source", hit.SourceURL),
					zap.Float64("confidence", hit.Confidence),
				)
				return model.Ok(hit)
			}
		}
	}

	if c.answers != nil && ctx.Err() == nil {
		hit, err := c.ask(ctx, req)
		switch {
		case err != nil:
			lastErr = err
			zap.L().Warn("search: answer engine failed", zap.Error(err))
		case hit.NIP != "":
			return model.Ok(hit)
		default:
			ran = true
		}
	}

	if !ran && lastErr != nil {
		return model.Unavailable[model.SearchHit](lastErr.Error())
	}
	return model.Ok(model.SearchHit{})
}

func (c *Cascade) searchWeb(ctx context.Context, text string) (*jina.SearchResponse, error) {
	resp, err := resilience.Do(ctx, c.searchGuard, "jina search", func(ctx context.Context) (*jina.SearchResponse, error) {
		return c.web.Search(ctx, text, jina.WithCountry("pl"))
	})
	if err != nil {
		zap.L().Warn("search: query failed", zap.String("query", text), zap.Error(err))
	}
	return resp, err
}

// mine picks the most credible registry-known NIP printed in the results.
// Blacklisted pages are ignored; ties keep the earlier result.
func (c *Cascade) mine(ctx context.Context, results []jina.SearchResult, domainHint string) (model.SearchHit, bool) {
	var best model.SearchHit
	for _, r := range results {
		domain := nip.DomainFromURL(r.URL)
		conf := c.confidence(domain, domainHint)
		if conf == 0 || conf <= best.Confidence {
			continue
		}
		for _, id := range nip.ExtractAll(r.Snippet()+" "+r.Content, false) {
			if !c.known(ctx, id) {
				continue
			}
			best = model.SearchHit{NIP: id, Confidence: conf, SourceURL: r.URL}
			break
		}
	}
	return best, best.NIP != ""
}

// confidence weighs a result domain. Zero means the page must be ignored.
func (c *Cascade) confidence(domain, domainHint string) float64 {
	if domain == "" {
		return 0
	}
	if domainHint != "" && nip.SameDomain(domain, domainHint) {
		return ConfidenceOwnSite
	}
	switch c.lists.Classify(domain) {
	case evidence.ClassBlacklist:
		return 0
	case evidence.ClassRegistry:
		return ConfidenceRegistry
	case evidence.ClassGreylist:
		return ConfidenceGreylist
	}
	return ConfidenceUnknown
}

// known reports whether the registry has id. Without a registry, or when
// it cannot answer, every checksum-valid NIP passes.
func (c *Cascade) known(ctx context.Context, id string) bool {
	if c.registry == nil {
		return true
	}
	out := c.registry.Lookup(ctx, id)
	return !out.OK || out.Value.Found
}

const answerPrompt = "Podaj numer NIP firmy %s. Odpowiedz tylko numerem NIP albo słowem BRAK."

func (c *Cascade) ask(ctx context.Context, req Request) (model.SearchHit, error) {
	subject := fmt.Sprintf("%q", req.Name)
	if req.City != "" {
		subject += " z miejscowości " + req.City
	}
	if req.DomainHint != "" {
		subject += " (strona " + req.DomainHint + ")"
	}
	prompt := fmt.Sprintf(answerPrompt, subject)

	ans, err := resilience.Do(ctx, c.answerGuard, "perplexity ask", func(ctx context.Context) (*perplexity.Answer, error) {
		return c.answers.Ask(ctx, perplexity.Question{Prompt: prompt, Exclude: c.lists.Blacklist})
	})
	if err != nil {
		return model.SearchHit{}, err
	}

	for _, id := range nip.ExtractAll(ans.Text, true) {
		if !c.known(ctx, id) {
			continue
		}
		return model.SearchHit{
			NIP:        id,
			Confidence: ConfidenceAnswer,
			SourceURL:  c.citation(ans.Citations),
			Query:      prompt,
		}, nil
	}
	return model.SearchHit{}, nil
}

// citation returns the first cited URL that is not blacklisted.
func (c *Cascade) citation(urls []string) string {
	for _, u := range urls {
		if c.lists.Classify(nip.DomainFromURL(u)) != evidence.ClassBlacklist {
			return strings.TrimSpace(u)
		}
	}
	return ""
}
