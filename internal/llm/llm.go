package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Client abstracts reasoning providers that turn an analysis prompt into
// structured JSON output.
type Client interface {
	Complete(ctx context.Context, prompt string) (json.RawMessage, error)
}

// ErrUnavailable signals that no reasoning provider is configured or the
// provider could not produce output. Callers fall back to rule-based logic.
var ErrUnavailable = errors.New("llm unavailable")

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// Complete always reports the provider as unavailable.
func (PlaceholderClient) Complete(ctx context.Context, prompt string) (json.RawMessage, error) {
	_ = ctx
	_ = prompt
	return nil, ErrUnavailable
}
