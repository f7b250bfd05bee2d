package llm

import (
	"context"
	"fmt"
)

// Tier selects the model class within a provider: classification runs on
// the fast model, spoken answers on the quality model.
type Tier string

const (
	TierFast    Tier = "fast"
	TierQuality Tier = "quality"
)

// Request is a provider-agnostic completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	Tier        Tier

	// Structured marks requests whose output must be machine-parseable
	// JSON. Providers do not change behavior on it, but the mock does.
	Structured bool
}

// Provider is a single LLM backend. Implementations must honor ctx
// cancellation and return a non-empty completion on success.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderError carries enough detail to classify an upstream failure.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
