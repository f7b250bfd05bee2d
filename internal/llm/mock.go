package llm

import "context"

// MockProvider gives deterministic local replies when no real provider is
// configured, keeping the pipeline runnable offline.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

var _ Provider = &MockProvider{}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Complete(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if req.Structured {
		return `{"intenciones": [], "tipo_operacion": "lectura"}`, nil
	}
	return "Estoy en modo de prueba y no tengo acceso a los datos reales en este momento.", nil
}
