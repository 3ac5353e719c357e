package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml over
// it, expands ${VAR} placeholders and lets environment variables override
// any key (database.postgres.host -> DATABASE_POSTGRES_HOST).
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional per-environment overlay

	return finish(v)
}

// LoadFromFile loads a single explicit config file.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)
	return v
}

// bindEnvKeys registers keys that may come only from the environment so
// AutomaticEnv picks them up during Unmarshal.
func bindEnvKeys(v *viper.Viper) {
	bindings := map[string]string{
		"database.postgres.host":     "DB_HOST",
		"database.postgres.user":     "DB_USER",
		"database.postgres.password": "DB_PASSWORD",
		"database.supabase.url":      "SUPABASE_URL",
		"database.supabase.key":      "SUPABASE_KEY",
		"completion.api_key":         "COMPLETION_API_KEY",
		"apis.genai.api_key":         "GENAI_API_KEY",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, strings.ToUpper(strings.NewReplacer(".", "_").Replace(key)), env)
	}
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "docgen-workers"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "document_templates"
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "postgres"
	}
	if cfg.Store.RedisKeyPrefix == "" {
		cfg.Store.RedisKeyPrefix = "template:"
	}
	if cfg.Template.RegistryPath == "" {
		cfg.Template.RegistryPath = "configs/templates.json"
	}

	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = 100
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 30 * 60 * 1000
	}
	if cfg.Cache.RecencyWeight == 0 {
		cfg.Cache.RecencyWeight = 1.0
	}
	if cfg.Cache.FrequencyWeight == 0 {
		cfg.Cache.FrequencyWeight = 60000
	}

	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 10000
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 800
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.2
	}
	if cfg.Generation.MaxCandidates == 0 {
		cfg.Generation.MaxCandidates = 3
	}
	if cfg.Generation.BatchConcurrency == 0 {
		cfg.Generation.BatchConcurrency = 3
	}
	if cfg.Generation.MaxPromptTokens == 0 {
		cfg.Generation.MaxPromptTokens = 1500
	}
	if cfg.Generation.MetadataWorkers == 0 {
		cfg.Generation.MetadataWorkers = 2
	}
	if cfg.Generation.MetadataQueueSize == 0 {
		cfg.Generation.MetadataQueueSize = 256
	}
	if cfg.Generation.ServiceName == "" {
		cfg.Generation.ServiceName = "document-generation"
	}

	if cfg.Completion.Provider == "" {
		cfg.Completion.Provider = "genai"
	}
	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 10000
	}

	if cfg.Analytics.BatchSize == 0 {
		cfg.Analytics.BatchSize = 100
	}
	if cfg.Analytics.FlushInterval == 0 {
		cfg.Analytics.FlushInterval = 60000
	}
	if cfg.Analytics.MaxWindowDays == 0 {
		cfg.Analytics.MaxWindowDays = 30
	}
	if cfg.Analytics.RealtimeWindow == 0 {
		cfg.Analytics.RealtimeWindow = 60000
	}
	if cfg.Analytics.InsightsWindow == 0 {
		cfg.Analytics.InsightsWindow = 24 * 60 * 60 * 1000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
	if cfg.Observability.TraceSampleRatio == 0 {
		cfg.Observability.TraceSampleRatio = 1.0
	}

	if cfg.Workers == nil {
		cfg.Workers = make(map[string]WorkerConfig)
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	case "supabase":
		if cfg.Database.Supabase.URL == "" || cfg.Database.Supabase.Key == "" {
			return fmt.Errorf("database.supabase.url and database.supabase.key are required")
		}
	case "file":
	default:
		return fmt.Errorf("store.driver must be one of postgres, supabase, file (got %q)", cfg.Store.Driver)
	}

	if cfg.Store.RedisCacheTTL > 0 && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when store.redis_cache_ttl is set")
	}
	if cfg.Database.Elasticsearch.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when elasticsearch is enabled")
	}
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	switch cfg.Completion.Provider {
	case "genai":
		if cfg.APIs.GenAI.BaseURL == "" {
			return fmt.Errorf("apis.genai.base_url is required for the genai provider")
		}
	case "openai", "anthropic":
		if cfg.Completion.Model == "" {
			return fmt.Errorf("completion.model is required for the %s provider", cfg.Completion.Provider)
		}
	default:
		return fmt.Errorf("completion.provider must be one of genai, openai, anthropic (got %q)", cfg.Completion.Provider)
	}

	if cfg.Generation.Temperature < 0 || cfg.Generation.Temperature > 1 {
		return fmt.Errorf("generation.temperature must be within [0, 1]")
	}
	if cfg.Cache.RecencyWeight < 0 || cfg.Cache.FrequencyWeight < 0 {
		return fmt.Errorf("cache weights must be non-negative")
	}
	if cfg.Analytics.MaxWindowDays > 30 {
		return fmt.Errorf("analytics.max_window_days cannot exceed 30")
	}

	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
