package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "battle.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "battle:", cfg.Store.RedisPrefix)
	assert.Equal(t, "hash", cfg.Knowledge.Embedder)
	assert.Equal(t, 256, cfg.Knowledge.HashDims)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, int64(2048), cfg.LLM.MaxTokens)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, "https://www.reddit.com", cfg.Reddit.BaseURL)
	assert.Equal(t, 3, cfg.Ingest.MinDocuments)
	assert.Equal(t, 25, cfg.Ingest.MaxURLs)
	assert.InDelta(t, 0.66, cfg.Ingest.RequestsPerSec, 0.001)
	assert.Equal(t, []string{"/user/*", "/r/*/wiki/*"}, cfg.Ingest.ExcludePaths)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.InDelta(t, 2.0, cfg.Retry.Multiplier, 0.001)
	assert.Equal(t, 15, cfg.Analysis.TopN)
	assert.Equal(t, 600, cfg.Cache.BuildTimeoutSecs)
	assert.Equal(t, 180, cfg.Compare.TimeoutSecs)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Contains(t, cfg.Server.AllowedOrigins, "http://localhost:5173")
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Monitoring.Enabled)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
	assert.InDelta(t, 0.5, cfg.Monitoring.FailureRateThreshold, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: redis
llm:
  provider: openai
log:
  level: debug
  format: console
server:
  port: 9090
ingest:
  min_documents: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Ingest.MinDocuments)
	// Defaults still apply for unset values
	assert.Equal(t, 25, cfg.Ingest.MaxURLs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("BATTLE_STORE_DRIVER", "postgres")
	t.Setenv("BATTLE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("BATTLE_SERVER_PORT", "3000")
	t.Setenv("BATTLE_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config that passes validation.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Knowledge.Embedder = "hash"
	cfg.LLM.Provider = "anthropic"
	cfg.Anthropic.Key = "sk-ant-key"
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate())
}

func TestValidate_StoreDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")

	cfg.Store.Driver = "postgres"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/battle"
	assert.NoError(t, cfg.Validate())

	cfg.Store.Driver = "redis"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Embedder(t *testing.T) {
	cfg := validDefaults()
	cfg.Knowledge.Embedder = "gemini"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini.key is required")

	cfg.Gemini.Key = "g-key"
	assert.NoError(t, cfg.Validate())

	cfg.Knowledge.Embedder = "word2vec"
	assert.Error(t, cfg.Validate())
}

func TestValidate_LLMProvider(t *testing.T) {
	tests := []struct {
		provider string
		set      func(*Config)
		wantErr  string
	}{
		{"anthropic", func(c *Config) { c.Anthropic.Key = "" }, "anthropic.key is required"},
		{"gemini", func(c *Config) {}, "gemini.key is required"},
		{"openai", func(c *Config) {}, "openai.key is required"},
		{"llama", func(c *Config) {}, "unsupported llm provider"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := validDefaults()
			cfg.LLM.Provider = tt.provider
			tt.set(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLLMModel(t *testing.T) {
	cfg := &Config{}
	cfg.Anthropic.Model = "claude"
	cfg.Gemini.Model = "gemini"
	cfg.OpenAI.Model = "gpt"

	cfg.LLM.Provider = "anthropic"
	assert.Equal(t, "claude", cfg.LLMModel())
	cfg.LLM.Provider = "gemini"
	assert.Equal(t, "gemini", cfg.LLMModel())
	cfg.LLM.Provider = "openai"
	assert.Equal(t, "gpt", cfg.LLMModel())
}
