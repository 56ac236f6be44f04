package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Research   ResearchConfig   `yaml:"research" mapstructure:"research"`
	Generator  GeneratorConfig  `yaml:"generator" mapstructure:"generator"`
	AI         AIConfig         `yaml:"ai" mapstructure:"ai"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// NotionConfig holds the Notion token and the lead queue database.
type NotionConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	LeadDB    string  `yaml:"lead_db" mapstructure:"lead_db"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// JinaConfig holds Jina AI Reader and Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (scrape fallback only).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Model     string  `yaml:"model" mapstructure:"model"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// GoogleConfig holds Google Places API settings for review lookups.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings for the AI author.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SalesforceConfig holds Salesforce JWT auth settings and the Account fields
// opening lines are written to.
type SalesforceConfig struct {
	ClientID      string  `yaml:"client_id" mapstructure:"client_id"`
	Username      string  `yaml:"username" mapstructure:"username"`
	KeyPath       string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL      string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	LineField     string  `yaml:"line_field" mapstructure:"line_field"`
	TierField     string  `yaml:"tier_field" mapstructure:"tier_field"`
	ArtifactField string  `yaml:"artifact_field" mapstructure:"artifact_field"`
}

// Enabled reports whether Salesforce credentials are configured.
func (s SalesforceConfig) Enabled() bool {
	return s.ClientID != "" && s.KeyPath != ""
}

// ScrapeConfig configures website scraping.
type ScrapeConfig struct {
	Enabled       bool     `yaml:"enabled" mapstructure:"enabled"`
	MaxPages      int      `yaml:"max_pages" mapstructure:"max_pages"`
	Concurrency   int      `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs   int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLHours int      `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	ExcludePaths  []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
}

// ResearchConfig configures company research lookups. Providers are tried in
// order; unknown names are rejected by Validate.
type ResearchConfig struct {
	Enabled    bool     `yaml:"enabled" mapstructure:"enabled"`
	Providers  []string `yaml:"providers" mapstructure:"providers"`
	MaxResults int      `yaml:"max_results" mapstructure:"max_results"`
}

// GeneratorConfig configures template rendering and the line gate.
type GeneratorConfig struct {
	Seed          uint64 `yaml:"seed" mapstructure:"seed"`
	MinLineWords  int    `yaml:"min_line_words" mapstructure:"min_line_words"`
	MaxLineWords  int    `yaml:"max_line_words" mapstructure:"max_line_words"`
	TemplatesFile string `yaml:"templates_file" mapstructure:"templates_file"`
}

// AIConfig configures the model-authored path.
type AIConfig struct {
	Enabled     bool `yaml:"enabled" mapstructure:"enabled"`
	MaxAttempts int  `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency   int `yaml:"concurrency" mapstructure:"concurrency"`
	Limit         int `yaml:"limit" mapstructure:"limit"`
	DLQMaxRetries int `yaml:"dlq_max_retries" mapstructure:"dlq_max_retries"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// secretKeys are read from the environment even when no file sets them.
var secretKeys = []string{
	"notion.token",
	"notion.lead_db",
	"jina.key",
	"firecrawl.key",
	"perplexity.key",
	"google.key",
	"anthropic.key",
	"salesforce.client_id",
	"salesforce.username",
	"salesforce.key_path",
	"generator.templates_file",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OPENERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal unless bound.
	for _, key := range secretKeys {
		_ = v.BindEnv(key)
	}

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "openers.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("batch.limit", 100)
	v.SetDefault("batch.dlq_max_retries", 3)
	v.SetDefault("scrape.enabled", true)
	v.SetDefault("scrape.max_pages", 4)
	v.SetDefault("scrape.concurrency", 4)
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.cache_ttl_hours", 168)
	v.SetDefault("scrape.exclude_paths", []string{"/blog/*", "/news/*", "/press/*", "/privacy*", "/terms*"})
	v.SetDefault("research.enabled", true)
	v.SetDefault("research.providers", []string{"perplexity", "jina"})
	v.SetDefault("research.max_results", 5)
	v.SetDefault("generator.seed", 0)
	v.SetDefault("generator.min_line_words", 5)
	v.SetDefault("generator.max_line_words", 30)
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.max_attempts", 3)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("perplexity.rate_limit", 2)
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 300)
	v.SetDefault("notion.rate_limit", 3)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 5)
	v.SetDefault("salesforce.line_field", "Opening_Line__c")
	v.SetDefault("salesforce.tier_field", "Opening_Line_Tier__c")
	v.SetDefault("salesforce.artifact_field", "Opening_Line_Artifact__c")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
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
