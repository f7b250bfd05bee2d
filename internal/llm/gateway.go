package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mincaelectric/inventory-agent/internal/observability"
	"github.com/mincaelectric/inventory-agent/internal/reliability"
)

// ErrAllProvidersExhausted is returned only after every configured
// provider has been tried in priority order.
var ErrAllProvidersExhausted = errors.New("all llm providers exhausted")

// Gateway fans a completion request over an ordered provider list.
// A provider failure (timeout, non-2xx, empty or unparseable output)
// advances to the next provider; nothing is retried on the same one.
type Gateway struct {
	providers      []Provider
	attemptTimeout time.Duration
	logger         *zap.Logger
	metrics        *observability.Metrics
}

func NewGateway(providers []Provider, attemptTimeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Gateway {
	if attemptTimeout <= 0 {
		attemptTimeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		providers:      providers,
		attemptTimeout: attemptTimeout,
		logger:         logger,
		metrics:        metrics,
	}
}

// Complete returns the first non-empty completion in provider order.
func (g *Gateway) Complete(ctx context.Context, req Request) (string, error) {
	return g.complete(ctx, req, nil)
}

// CompleteStructured works like Complete but additionally requires decode
// to accept the completion. A decode failure is treated exactly like a
// transport failure: the next provider is tried.
func (g *Gateway) CompleteStructured(ctx context.Context, req Request, decode func(raw string) error) error {
	req.Structured = true
	_, err := g.complete(ctx, req, decode)
	return err
}

func (g *Gateway) complete(ctx context.Context, req Request, decode func(raw string) error) (string, error) {
	for i, p := range g.providers {
		attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
		text, err := p.Complete(attemptCtx, req)
		cancel()

		if err == nil && strings.TrimSpace(text) == "" {
			err = &ProviderError{Provider: p.Name(), Message: "empty completion"}
		}
		if err == nil && decode != nil {
			if decodeErr := decode(text); decodeErr != nil {
				err = &ProviderError{Provider: p.Name(), Message: "schema: " + decodeErr.Error()}
			}
		}
		if err == nil {
			g.observeCall(p.Name(), "ok")
			if i > 0 {
				g.metrics.ObserveIndicator("llm_fallback")
			}
			return text, nil
		}

		// The caller going away is not a provider fault; stop instead of
		// burning through the remaining providers.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		g.observeCall(p.Name(), "error")
		g.observeError(p.Name(), err)
		g.logger.Warn("llm provider failed, advancing",
			zap.String("provider", p.Name()),
			zap.Int("position", i),
			zap.Error(err),
		)
	}
	return "", ErrAllProvidersExhausted
}

func (g *Gateway) observeCall(provider, result string) {
	if g.metrics == nil {
		return
	}
	g.metrics.ProviderCalls.WithLabelValues(provider, result).Inc()
}

func (g *Gateway) observeError(provider string, err error) {
	if g.metrics == nil {
		return
	}
	code := "upstream_error"
	var pe *ProviderError
	switch {
	case errors.As(err, &pe):
		code = reliability.ErrorCode(pe.StatusCode, pe.Message)
	case errors.Is(err, context.DeadlineExceeded):
		code = "timeout"
	}
	g.metrics.ProviderErrors.WithLabelValues(provider, code).Inc()
}

// ExtractJSON cuts the first top-level JSON object out of a completion,
// tolerating markdown fences and prose around it.
func ExtractJSON(response string) string {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return response[start : end+1]
}
