package completion

import (
	"fmt"

	"docgen-workers/internal/common/config"
)

// New builds the client selected by completion.provider.
func New(cfg *config.Config) (Client, error) {
	switch cfg.Completion.Provider {
	case "genai", "":
		return NewGenAIClient(GenAIConfig{
			BaseURL:    cfg.APIs.GenAI.BaseURL,
			APIKey:     cfg.APIs.GenAI.APIKey,
			Timeout:    config.GetDuration(cfg.APIs.GenAI.Timeout),
			MaxRetries: cfg.APIs.GenAI.MaxRetries,
		}), nil
	case "openai":
		return NewOpenAIClient(cfg.Completion.APIKey, cfg.Completion.BaseURL, cfg.Completion.Model), nil
	case "anthropic":
		return NewAnthropicClient(cfg.Completion.APIKey, cfg.Completion.BaseURL, cfg.Completion.Model), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Completion.Provider)
	}
}
