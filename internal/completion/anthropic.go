package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	antoption "github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

func NewAnthropicClient(apiKey, baseURL, model string) *AnthropicClient {
	opts := []antoption.RequestOption{
		antoption.WithAPIKey(apiKey),
		antoption.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, antoption.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{client: &client, model: model}
}

func (c *AnthropicClient) Provider() string { return "anthropic" }

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(req.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return nil, ErrEmptyResponse
	}
	return &Response{
		Text:         b.String(),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		Model:        string(msg.Model),
	}, nil
}
