// Package llm defines how a prepared transcript is turned into a reply.
package llm

import (
	"context"
	"errors"

	"github.com/kcaldas/tubechan/pkg/memory"
)

var (
	// ErrEmptyResponse is returned when the model answered with no text.
	ErrEmptyResponse = errors.New("completion returned an empty response")
	// ErrMissingAPIKey is returned when no credentials are configured.
	ErrMissingAPIKey = errors.New("completion backend not configured")
)

// Completer sends a prepared transcript to a chat model. An empty model
// selects the configured default.
type Completer interface {
	Complete(ctx context.Context, model string, turns memory.Transcript) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, model string, turns memory.Transcript) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, model string, turns memory.Transcript) (string, error) {
	return f(ctx, model, turns)
}
