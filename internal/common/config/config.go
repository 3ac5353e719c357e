// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Store         StoreConfig             `mapstructure:"store"`
	Template      TemplateConfig          `mapstructure:"template"`
	Cache         CacheConfig             `mapstructure:"cache"`
	Generation    GenerationConfig        `mapstructure:"generation"`
	Completion    CompletionConfig        `mapstructure:"completion"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Analytics     AnalyticsConfig         `mapstructure:"analytics"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	Mode            string `mapstructure:"mode"`             // gin mode: debug, release, test
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Supabase      SupabaseConfig      `mapstructure:"supabase"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SupabaseConfig struct {
	URL string `mapstructure:"url"`
	Key string `mapstructure:"key"`
}

// StoreConfig selects the template/metrics store driver.
type StoreConfig struct {
	Driver         string `mapstructure:"driver"`          // postgres, supabase, file
	RedisCacheTTL  int    `mapstructure:"redis_cache_ttl"` // milliseconds; 0 disables the read-through
	RedisKeyPrefix string `mapstructure:"redis_key_prefix"`
}

// TemplateConfig points at the secondary template registry file.
type TemplateConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}

type CacheConfig struct {
	Capacity        int     `mapstructure:"capacity"`
	TTL             int     `mapstructure:"ttl"` // milliseconds
	RecencyWeight   float64 `mapstructure:"recency_weight"`
	FrequencyWeight int     `mapstructure:"frequency_weight"` // milliseconds credited per access
}

type GenerationConfig struct {
	Timeout           int     `mapstructure:"timeout"` // milliseconds
	MaxTokens         int     `mapstructure:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxCandidates     int     `mapstructure:"max_candidates"`
	BatchConcurrency  int     `mapstructure:"batch_concurrency"`
	MaxPromptTokens   int     `mapstructure:"max_prompt_tokens"`
	MetadataWorkers   int     `mapstructure:"metadata_workers"`
	MetadataQueueSize int     `mapstructure:"metadata_queue_size"`
	ServiceName       string  `mapstructure:"service_name"`
}

// CompletionConfig selects the completion provider.
type CompletionConfig struct {
	Provider string `mapstructure:"provider"` // genai, openai, anthropic
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI struct {
		BaseURL    string `mapstructure:"base_url"`
		APIKey     string `mapstructure:"api_key"`
		Timeout    int    `mapstructure:"timeout"` // milliseconds
		MaxRetries int    `mapstructure:"max_retries"`
	} `mapstructure:"genai"`
}

type AnalyticsConfig struct {
	BatchSize      int `mapstructure:"batch_size"`
	FlushInterval  int `mapstructure:"flush_interval"`  // milliseconds
	MaxWindowDays  int `mapstructure:"max_window_days"` // dashboard cap
	RealtimeWindow int `mapstructure:"realtime_window"` // milliseconds
	InsightsWindow int `mapstructure:"insights_window"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type ObservabilityConfig struct {
	ServiceName      string  `mapstructure:"service_name"`
	TraceSampleRatio float64 `mapstructure:"trace_sample_ratio"`
}
