package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/nip-resolver/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	GUS        GUSConfig        `yaml:"gus" mapstructure:"gus"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Router     RouterConfig     `yaml:"router" mapstructure:"router"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Costs      cost.Rates       `yaml:"costs" mapstructure:"costs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// GUSConfig holds BIR registry settings.
type GUSConfig struct {
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	TestMode    bool    `yaml:"test_mode" mapstructure:"test_mode"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SalesforceConfig holds Salesforce JWT auth settings and the org's
// account field names.
type SalesforceConfig struct {
	ClientID    string  `yaml:"client_id" mapstructure:"client_id"`
	Username    string  `yaml:"username" mapstructure:"username"`
	KeyPath     string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL    string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	NIPField    string  `yaml:"nip_field" mapstructure:"nip_field"`
	DomainField string  `yaml:"domain_field" mapstructure:"domain_field"`
}

// Configured reports whether JWT credentials are present.
func (s SalesforceConfig) Configured() bool {
	return s.ClientID != "" && s.Username != "" && s.KeyPath != ""
}

// AnthropicConfig holds Anthropic API settings for the lead parser.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// JinaConfig holds Jina reader and search settings.
type JinaConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string  `yaml:"search_base_url" mapstructure:"search_base_url"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// FirecrawlConfig holds Firecrawl API settings. Without a key the
// scrape chain ends at the Jina reader.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// GoogleConfig holds Places API settings.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// RouterConfig tunes the resolution policy.
type RouterConfig struct {
	SkipCRM         bool `yaml:"skip_crm" mapstructure:"skip_crm"`
	SkipSearch      bool `yaml:"skip_search" mapstructure:"skip_search"`
	StepTimeoutSecs int  `yaml:"step_timeout_secs" mapstructure:"step_timeout_secs"`
	MaxQueries      int  `yaml:"max_queries" mapstructure:"max_queries"`
}

// StepTimeout returns the per-call timeout.
func (r RouterConfig) StepTimeout() time.Duration {
	if r.StepTimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.StepTimeoutSecs) * time.Second
}

// ScoringConfig points at an optional source lists override file.
type ScoringConfig struct {
	SourcesFile string `yaml:"sources_file" mapstructure:"sources_file"`
}

// ScrapeConfig configures the site scraper.
type ScrapeConfig struct {
	MaxPages     int      `yaml:"max_pages" mapstructure:"max_pages"`
	Concurrency  int      `yaml:"concurrency" mapstructure:"concurrency"`
	ExcludePaths []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DSN           string `yaml:"dsn" mapstructure:"dsn"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// CacheTTL returns the registry cache lifetime.
func (s StoreConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLHours) * time.Hour
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// CircuitConfig tunes the per-service circuit breakers.
type CircuitConfig struct {
	Threshold    int `yaml:"threshold" mapstructure:"threshold"`
	CooldownSecs int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// RetryConfig tunes retries of transient failures.
type RetryConfig struct {
	Attempts int `yaml:"attempts" mapstructure:"attempts"`
	BaseMs   int `yaml:"base_ms" mapstructure:"base_ms"`
	MaxMs    int `yaml:"max_ms" mapstructure:"max_ms"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path, or from ./config.yaml when path
// is empty. A missing default file is not an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("NIPR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	rates := cost.DefaultRates()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("gus.timeout_secs", 15)
	v.SetDefault("gus.rate_limit", 2.0)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 5.0)
	v.SetDefault("salesforce.nip_field", "NIP__c")
	v.SetDefault("salesforce.domain_field", "Website")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.rate_limit", 2.0)
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("perplexity.rate_limit", 1)
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("router.skip_crm", false)
	v.SetDefault("router.skip_search", false)
	v.SetDefault("router.step_timeout_secs", 30)
	v.SetDefault("router.max_queries", 5)
	v.SetDefault("scoring.sources_file", "")
	v.SetDefault("scrape.max_pages", 6)
	v.SetDefault("scrape.concurrency", 3)
	v.SetDefault("scrape.exclude_paths", []string{})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "nipr.db")
	v.SetDefault("store.cache_ttl_hours", 30*24)
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("circuit.threshold", 5)
	v.SetDefault("circuit.cooldown_secs", 60)
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.base_ms", 500)
	v.SetDefault("retry.max_ms", 5000)
	v.SetDefault("costs.parse", rates.Parse)
	v.SetDefault("costs.registry_hit", rates.RegistryHit)
	v.SetDefault("costs.crm", rates.CRM)
	v.SetDefault("costs.validate", rates.Validate)
	v.SetDefault("costs.scrape_hit", rates.ScrapeHit)
	v.SetDefault("costs.scrape_miss", rates.ScrapeMiss)
	v.SetDefault("costs.search_hit", rates.SearchHit)
	v.SetDefault("costs.search_miss", rates.SearchMiss)
}

// Validate checks that the keys a command mode depends on are present and
// that shared settings are in range.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "resolve", "score", "batch", "traces":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Store.DSN == "" {
			errs = append(errs, "store.dsn is required")
		}
	case "match":
		if !c.Salesforce.Configured() {
			errs = append(errs, "salesforce.client_id, salesforce.username and salesforce.key_path are required")
		}
	case "locations":
		if c.Google.Key == "" {
			errs = append(errs, "google.key is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 50 {
		errs = append(errs, "batch.concurrency must be between 1 and 50")
	}
	if c.Router.MaxQueries < 0 {
		errs = append(errs, "router.max_queries must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
