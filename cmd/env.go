package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/config"
	"github.com/sells-group/nip-resolver/internal/crm"
	"github.com/sells-group/nip-resolver/internal/evidence"
	"github.com/sells-group/nip-resolver/internal/parse"
	"github.com/sells-group/nip-resolver/internal/registry"
	"github.com/sells-group/nip-resolver/internal/resilience"
	"github.com/sells-group/nip-resolver/internal/router"
	"github.com/sells-group/nip-resolver/internal/scrape"
	"github.com/sells-group/nip-resolver/internal/search"
	"github.com/sells-group/nip-resolver/internal/store"
	anthropicpkg "github.com/sells-group/nip-resolver/pkg/anthropic"
	"github.com/sells-group/nip-resolver/pkg/firecrawl"
	"github.com/sells-group/nip-resolver/pkg/gus"
	"github.com/sells-group/nip-resolver/pkg/jina"
	"github.com/sells-group/nip-resolver/pkg/perplexity"
	"github.com/sells-group/nip-resolver/pkg/salesforce"
)

// resolverEnv holds every initialized client plus the router needed by the
// resolve, batch and serve commands.
type resolverEnv struct {
	Store    store.Store // nil unless requested
	Router   *router.Router
	Registry registry.Lookup
	CRM      *crm.Client
	Scraper  *scrape.SiteScraper
	Scorer   *evidence.Scorer
	Guards   *resilience.Guards
}

// Close releases resources held by the environment.
func (e *resolverEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initResolver wires the collaborators from cfg. withStore opens and
// migrates the configured store, which also backs the registry cache.
// Callers should defer env.Close().
func initResolver(ctx context.Context, c *config.Config, withStore bool) (*resolverEnv, error) {
	env := &resolverEnv{}

	bc, rp := resilience.FromSettings(c.Circuit.Threshold, c.Circuit.CooldownSecs,
		c.Retry.Attempts, c.Retry.BaseMs, c.Retry.MaxMs)
	env.Guards = resilience.NewGuards(bc, rp)

	lists := evidence.DefaultSourceLists()
	if c.Scoring.SourcesFile != "" {
		l, err := evidence.LoadSourceLists(c.Scoring.SourcesFile)
		if err != nil {
			return nil, err
		}
		lists = l
	}
	env.Scorer = evidence.NewScorer(lists)

	if withStore {
		st, err := initStore(ctx, c.Store)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}

	reg := initRegistry(c, env)
	env.Registry = reg

	sf, err := initSalesforce(c.Salesforce)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.CRM = crm.New(sf,
		crm.WithFields(salesforce.Fields{NIP: c.Salesforce.NIPField, Website: c.Salesforce.DomainField}),
		crm.WithGuard(env.Guards.Get("salesforce")),
	)

	jinaClient := initJina(c.Jina)
	env.Scraper = initScraper(c, jinaClient, lists)

	cascade := initSearch(c, jinaClient, reg, lists, env.Guards)

	env.Router = router.New(c, router.Deps{
		Parser:   initParser(c.Anthropic),
		Registry: reg,
		CRM:      env.CRM,
		Scraper:  env.Scraper,
		Search:   cascade,
		Websites: cascade,
	}, router.WithScorer(env.Scorer))

	return env, nil
}

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch sc.Driver {
	case "sqlite":
		st, err = store.NewSQLite(sc.DSN)
	case "postgres":
		st, err = store.NewPostgres(ctx, sc.DSN, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initRegistry(c *config.Config, env *resolverEnv) *registry.Client {
	key := c.GUS.APIKey
	if c.GUS.TestMode && key == "" {
		key = gus.TestKey
	}

	opts := []gus.Option{
		gus.WithHTTPClient(&http.Client{Timeout: time.Duration(c.GUS.TimeoutSecs) * time.Second}),
		gus.WithRateLimit(c.GUS.RateLimit),
	}
	if c.GUS.BaseURL != "" {
		opts = append(opts, gus.WithBaseURL(c.GUS.BaseURL))
	}
	if key == "" {
		zap.L().Warn("NIPR_GUS_API_KEY not set, registry confirmation disabled")
	}

	regOpts := []registry.Option{registry.WithGuard(env.Guards.Get("gus"))}
	if env.Store != nil {
		regOpts = append(regOpts, registry.WithCache(env.Store, c.Store.CacheTTL()))
	}
	return registry.New(gus.NewClient(key, opts...), regOpts...)
}

// initSalesforce returns a nil client when no credentials are configured;
// the CRM step then reports itself as not configured.
func initSalesforce(sc config.SalesforceConfig) (salesforce.Client, error) {
	if !sc.Configured() {
		zap.L().Debug("salesforce not configured, CRM lookups disabled")
		return nil, nil
	}

	sf, err := salesforce.Connect(salesforce.Creds{
		LoginURL: sc.LoginURL,
		Username: sc.Username,
		ClientID: sc.ClientID,
		KeyPath:  sc.KeyPath,
	}, salesforce.WithRateLimit(sc.RateLimit))
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}
	return sf, nil
}

func initParser(ac config.AnthropicConfig) parse.Parser {
	var primary parse.Parser
	if ac.Key != "" {
		primary = parse.NewLLM(anthropicpkg.NewClient(ac.Key), ac.Model, ac.MaxTokens)
	} else {
		zap.L().Debug("NIPR_ANTHROPIC_KEY not set, using regex parser")
	}
	return parse.NewChain(primary, nil)
}

// initJina builds the reader client even without a key; anonymous reads
// are rate limited but allowed.
func initJina(jc config.JinaConfig) jina.Client {
	opts := []jina.Option{jina.WithRateLimit(jc.RateLimit)}
	if jc.BaseURL != "" {
		opts = append(opts, jina.WithBaseURL(jc.BaseURL))
	}
	if jc.SearchBaseURL != "" {
		opts = append(opts, jina.WithSearchBaseURL(jc.SearchBaseURL))
	}
	return jina.NewClient(jc.Key, opts...)
}

func initScraper(c *config.Config, jinaClient jina.Client, lists *evidence.SourceLists) *scrape.SiteScraper {
	fetchers := []scrape.Fetcher{
		scrape.NewLocalFetcher(),
		scrape.NewJinaFetcher(jinaClient),
	}
	if c.Firecrawl.Key != "" {
		fetchers = append(fetchers, scrape.NewFirecrawlFetcher(
			firecrawl.NewClient(c.Firecrawl.Key, firecrawl.WithBaseURL(c.Firecrawl.BaseURL))))
	}

	chain := scrape.NewChain(scrape.NewPathMatcher(c.Scrape.ExcludePaths), fetchers...)
	return scrape.NewSiteScraper(chain,
		scrape.WithMaxPages(c.Scrape.MaxPages),
		scrape.WithConcurrency(c.Scrape.Concurrency),
		scrape.WithSourceLists(lists),
	)
}

func initSearch(c *config.Config, jinaClient jina.Client, reg registry.Lookup, lists *evidence.SourceLists, guards *resilience.Guards) *search.Cascade {
	var web jina.Client
	if c.Jina.Key != "" {
		web = jinaClient
	} else {
		zap.L().Debug("NIPR_JINA_KEY not set, web search disabled")
	}

	opts := []search.Option{
		search.WithRegistry(reg),
		search.WithSourceLists(lists),
		search.WithMaxQueries(c.Router.MaxQueries),
		search.WithGuards(guards),
	}
	if c.Perplexity.Key != "" {
		opts = append(opts, search.WithPerplexity(perplexity.NewClient(c.Perplexity.Key,
			perplexity.WithBaseURL(c.Perplexity.BaseURL),
			perplexity.WithModel(c.Perplexity.Model),
			perplexity.WithRateLimit(c.Perplexity.RateLimit),
		)))
	}
	return search.New(web, opts...)
}
