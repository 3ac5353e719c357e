package performanceinsights

import (
	"fmt"
	"time"

	"docgen-workers/internal/common/config"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	// DefaultWindow is the dashboard range used when the job names none.
	DefaultWindow time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 2,
		Timeout:       30 * time.Second,
		DefaultWindow: 24 * time.Hour,
	}
}

func createConfigFromAppConfig(appCfg *config.Config, custom *Config) *Config {
	if custom != nil {
		return custom
	}
	cfg := DefaultConfig()
	if appCfg == nil {
		return cfg
	}
	wc := config.GetWorkerConfig(appCfg, TaskType)
	cfg.Enabled = wc.Enabled
	if wc.MaxJobsActive > 0 {
		cfg.MaxJobsActive = wc.MaxJobsActive
	}
	if wc.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wc.Timeout)
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 || c.MaxJobsActive <= 0 {
		return fmt.Errorf("timeout and max_jobs_active must be positive")
	}
	if c.DefaultWindow <= 0 {
		return fmt.Errorf("default window must be positive")
	}
	return nil
}
