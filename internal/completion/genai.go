package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	commonhttp "docgen-workers/internal/common/http"
	"docgen-workers/internal/common/tokens"
)

type GenAIConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// GenAIClient calls the in-house generation gateway.
type GenAIClient struct {
	baseURL string
	http    *commonhttp.Client
	tokens  tokens.Estimator
}

func NewGenAIClient(cfg GenAIConfig) *GenAIClient {
	opts := []commonhttp.Option{commonhttp.WithRetries(cfg.MaxRetries, 100*time.Millisecond)}
	if cfg.APIKey != "" {
		opts = append(opts, commonhttp.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}
	return &GenAIClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    commonhttp.NewClient(cfg.Timeout, opts...),
		tokens:  tokens.Default(),
	}
}

func (c *GenAIClient) Provider() string { return "genai" }

type genaiRequest struct {
	System      string  `json:"system"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type genaiResponse struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *GenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	var out genaiResponse
	err := c.http.PostJSON(ctx, c.baseURL+"/api/ai/generate", genaiRequest{
		System:      req.System,
		Prompt:      req.User,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("genai generate: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, ErrEmptyResponse
	}

	resp := &Response{
		Text:         out.Text,
		InputTokens:  out.Usage.InputTokens,
		OutputTokens: out.Usage.OutputTokens,
		TotalTokens:  out.Usage.TotalTokens,
		Model:        out.Model,
	}
	// The gateway omits usage for some backends.
	if resp.TotalTokens == 0 {
		resp.InputTokens = c.tokens.Count(req.System) + c.tokens.Count(req.User)
		resp.OutputTokens = c.tokens.Count(out.Text)
		resp.TotalTokens = resp.InputTokens + resp.OutputTokens
	}
	return resp, nil
}
