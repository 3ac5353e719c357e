package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: file
apis:
  genai:
    base_url: http://genai.local
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Cache.Capacity)
	assert.Equal(t, 30*time.Minute, GetDuration(cfg.Cache.TTL))
	assert.Equal(t, 1.0, cfg.Cache.RecencyWeight)
	assert.Equal(t, 10*time.Second, GetDuration(cfg.Generation.Timeout))
	assert.Equal(t, 800, cfg.Generation.MaxTokens)
	assert.Equal(t, 0.2, cfg.Generation.Temperature)
	assert.Equal(t, 3, cfg.Generation.BatchConcurrency)
	assert.Equal(t, 100, cfg.Analytics.BatchSize)
	assert.Equal(t, time.Minute, GetDuration(cfg.Analytics.FlushInterval))
	assert.Equal(t, 30, cfg.Analytics.MaxWindowDays)
	assert.Equal(t, "genai", cfg.Completion.Provider)
	assert.Equal(t, "configs/templates.json", cfg.Template.RegistryPath)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_GENAI_URL", "http://expanded.local")
	path := writeConfig(t, `
store:
  driver: file
apis:
  genai:
    base_url: ${TEST_GENAI_URL}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://expanded.local", cfg.APIs.GenAI.BaseURL)
}

func TestLoadFromFile_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("COMPLETION_API_KEY", "sk-test")
	path := writeConfig(t, `
store:
  driver: file
completion:
  provider: openai
  model: gpt-4o-mini
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Completion.APIKey)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "file store with genai",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.Store.Driver = "mongo" },
			wantErr: "store.driver",
		},
		{
			name:    "postgres without host",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: "database.postgres.host",
		},
		{
			name:    "supabase without key",
			mutate:  func(c *Config) { c.Store.Driver = "supabase"; c.Database.Supabase.URL = "http://x" },
			wantErr: "database.supabase",
		},
		{
			name:    "redis read-through without address",
			mutate:  func(c *Config) { c.Store.RedisCacheTTL = 1000 },
			wantErr: "database.redis.address",
		},
		{
			name:    "openai without model",
			mutate:  func(c *Config) { c.Completion.Provider = "openai" },
			wantErr: "completion.model",
		},
		{
			name:    "window above thirty days",
			mutate:  func(c *Config) { c.Analytics.MaxWindowDays = 31 },
			wantErr: "max_window_days",
		},
		{
			name:    "camunda enabled without broker",
			mutate:  func(c *Config) { c.Camunda.Enabled = true },
			wantErr: "camunda.broker_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Store: StoreConfig{Driver: "file"}}
			cfg.APIs.GenAI.BaseURL = "http://genai.local"
			applyDefaults(cfg)
			tt.mutate(cfg)

			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"generate-document": {Enabled: false, MaxJobsActive: 2},
	}}
	applyDefaults(cfg)

	wc := GetWorkerConfig(cfg, "generate-document")
	assert.False(t, wc.Enabled)
	assert.Equal(t, 2, wc.MaxJobsActive)
	assert.Equal(t, 30000, wc.Timeout)

	assert.True(t, GetWorkerConfig(cfg, "classify-intent").Enabled)
	assert.False(t, IsWorkerEnabled(cfg, "generate-document"))
	assert.True(t, IsWorkerEnabled(cfg, "performance-insights"))
}
