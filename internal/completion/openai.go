package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	oaioption "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	opts := []oaioption.RequestOption{
		oaioption.WithAPIKey(apiKey),
		oaioption.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, oaioption.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClient{client: &client, model: model}
}

func (c *OpenAIClient) Provider() string { return "openai" }

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	input := responses.ResponseInputParam{
		responses.ResponseInputItemParamOfMessage(req.System, responses.EasyInputMessageRoleSystem),
		responses.ResponseInputItemParamOfMessage(req.User, responses.EasyInputMessageRoleUser),
	}
	params := responses.ResponseNewParams{
		Model:           shared.ResponsesModel(c.model),
		Input:           responses.ResponseNewParamsInputUnion{OfInputItemList: input},
		MaxOutputTokens: openai.Int(int64(req.MaxTokens)),
		Temperature:     openai.Float(req.Temperature),
	}

	result, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses: %w", err)
	}
	text := result.OutputText()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}
	return &Response{
		Text:         text,
		InputTokens:  int(result.Usage.InputTokens),
		OutputTokens: int(result.Usage.OutputTokens),
		TotalTokens:  int(result.Usage.TotalTokens),
		Model:        string(result.Model),
	}, nil
}
