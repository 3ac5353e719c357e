package orchestrator

import (
	"time"

	"docgen-workers/internal/common/config"
)

type Config struct {
	Timeout          time.Duration
	MaxTokens        int
	Temperature      float64
	MaxCandidates    int
	BatchConcurrency int
	MaxPromptTokens  int
	ServiceName      string
}

func ConfigFrom(c config.GenerationConfig) Config {
	return Config{
		Timeout:          config.GetDuration(c.Timeout),
		MaxTokens:        c.MaxTokens,
		Temperature:      c.Temperature,
		MaxCandidates:    c.MaxCandidates,
		BatchConcurrency: c.BatchConcurrency,
		MaxPromptTokens:  c.MaxPromptTokens,
		ServiceName:      c.ServiceName,
	}
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 800
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.2
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 3
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 3
	}
	if c.MaxPromptTokens <= 0 {
		c.MaxPromptTokens = 1500
	}
	if c.ServiceName == "" {
		c.ServiceName = "document-generation"
	}
	return c
}
