// Package completion abstracts the text-generation service behind a single
// Complete call.
package completion

import (
	"context"
	"errors"
)

var (
	ErrEmptyResponse = errors.New("COMPLETION_EMPTY_RESPONSE")
	ErrUnknownDriver = errors.New("unknown completion provider")
)

type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	Model        string
}

// Client produces one completion. Implementations do not retry unless
// configured to; the caller's context bounds the call.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Provider() string
}
