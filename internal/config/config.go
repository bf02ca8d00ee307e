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
	Knowledge  KnowledgeConfig  `yaml:"knowledge" mapstructure:"knowledge"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Reddit     RedditConfig     `yaml:"reddit" mapstructure:"reddit"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Compare    CompareConfig    `yaml:"compare" mapstructure:"compare"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the analysis record backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres, redis
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RedisAddr   string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix" mapstructure:"redis_prefix"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// KnowledgeConfig configures the document index.
type KnowledgeConfig struct {
	Path           string `yaml:"path" mapstructure:"path"`
	Embedder       string `yaml:"embedder" mapstructure:"embedder"` // hash, gemini
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
	HashDims       int    `yaml:"hash_dims" mapstructure:"hash_dims"`
}

// LLMConfig selects the completion provider.
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // anthropic, gemini, openai
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// RedditConfig configures the Reddit HTML client.
type RedditConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// JinaConfig holds Jina AI Reader settings (fallback discovery/extraction).
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// IngestConfig configures knowledge ingestion.
type IngestConfig struct {
	MinDocuments      int      `yaml:"min_documents" mapstructure:"min_documents"`
	MaxURLs           int      `yaml:"max_urls" mapstructure:"max_urls"`
	Concurrency       int      `yaml:"concurrency" mapstructure:"concurrency"`
	RequestsPerSec    float64  `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	DiscoveryTTLHours int      `yaml:"discovery_ttl_hours" mapstructure:"discovery_ttl_hours"`
	ExcludePaths      []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
}

// RetryConfig configures retries of network-bound ingestion calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	Jitter           float64 `yaml:"jitter" mapstructure:"jitter"`
}

// AnalysisConfig configures retrieval for the analysis prompt.
type AnalysisConfig struct {
	TopN        int `yaml:"top_n" mapstructure:"top_n"`
	MaxDocChars int `yaml:"max_doc_chars" mapstructure:"max_doc_chars"`
}

// CacheConfig configures the analysis cache.
type CacheConfig struct {
	BuildTimeoutSecs int `yaml:"build_timeout_secs" mapstructure:"build_timeout_secs"`
}

// CompareConfig configures the comparison entry point.
type CompareConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MonitoringConfig configures background health checks and alerting.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinBuilds            int     `yaml:"min_builds" mapstructure:"min_builds"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BATTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "battle.db")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_prefix", "battle:")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("knowledge.path", "knowledge.db")
	v.SetDefault("knowledge.embedder", "hash")
	v.SetDefault("knowledge.embedding_model", "gemini-embedding-001")
	v.SetDefault("knowledge.hash_dims", 256)
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.max_tokens", 2048)
	// Keys have empty defaults so Unmarshal sees their env overrides.
	v.SetDefault("anthropic.key", "")
	v.SetDefault("gemini.key", "")
	v.SetDefault("openai.key", "")
	v.SetDefault("jina.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("reddit.base_url", "https://www.reddit.com")
	v.SetDefault("reddit.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("reddit.timeout_secs", 10)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("ingest.min_documents", 3)
	v.SetDefault("ingest.max_urls", 25)
	v.SetDefault("ingest.concurrency", 4)
	v.SetDefault("ingest.requests_per_sec", 0.66)
	v.SetDefault("ingest.discovery_ttl_hours", 24)
	v.SetDefault("ingest.exclude_paths", []string{"/user/*", "/r/*/wiki/*"})
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter", 0.25)
	v.SetDefault("analysis.top_n", 15)
	v.SetDefault("analysis.max_doc_chars", 4000)
	v.SetDefault("cache.build_timeout_secs", 600)
	v.SetDefault("compare.timeout_secs", 180)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000", "http://127.0.0.1:5173"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_builds", 5)
}

// Validate checks that the selected backends are known and that the
// selected LLM provider has credentials.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres", "redis":
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for postgres (BATTLE_STORE_DATABASE_URL)")
	}

	switch c.Knowledge.Embedder {
	case "hash":
	case "gemini":
		if c.Gemini.Key == "" {
			return eris.New("config: gemini.key is required for the gemini embedder (BATTLE_GEMINI_KEY)")
		}
	default:
		return eris.Errorf("config: unsupported embedder %q", c.Knowledge.Embedder)
	}

	switch c.LLM.Provider {
	case "anthropic":
		if c.Anthropic.Key == "" {
			return eris.New("config: anthropic.key is required (BATTLE_ANTHROPIC_KEY)")
		}
	case "gemini":
		if c.Gemini.Key == "" {
			return eris.New("config: gemini.key is required (BATTLE_GEMINI_KEY)")
		}
	case "openai":
		if c.OpenAI.Key == "" {
			return eris.New("config: openai.key is required (BATTLE_OPENAI_KEY)")
		}
	default:
		return eris.Errorf("config: unsupported llm provider %q", c.LLM.Provider)
	}
	return nil
}

// LLMModel returns the model id of the selected provider.
func (c *Config) LLMModel() string {
	switch c.LLM.Provider {
	case "gemini":
		return c.Gemini.Model
	case "openai":
		return c.OpenAI.Model
	default:
		return c.Anthropic.Model
	}
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
