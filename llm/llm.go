// Package llm defines the provider-neutral text generation contract.
// Concrete providers live under providers/.
package llm

import (
	"context"
	"time"
)

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

type Request struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Client is implemented by generation providers. Chat blocks for the
// duration of the remote call; callers bound it with ctx.
type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}
