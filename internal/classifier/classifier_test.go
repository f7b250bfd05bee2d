package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mincaelectric/inventory-agent/internal/llm"
	"github.com/mincaelectric/inventory-agent/internal/memory"
)

// fakeGateway replays completions through the decode hook the way the
// real gateway does: each reply that fails decoding advances to the next.
type fakeGateway struct {
	replies []string
	err     error
	prompts []string
}

func (f *fakeGateway) CompleteStructured(ctx context.Context, req llm.Request, decode func(raw string) error) error {
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return f.err
	}
	var lastErr error
	for _, raw := range f.replies {
		if lastErr = decode(raw); lastErr == nil {
			return nil
		}
	}
	return llm.ErrAllProvidersExhausted
}

func TestClassifySingleIntent(t *testing.T) {
	gw := &fakeGateway{replies: []string{`{"intenciones": ["inventario"], "tipo_operacion": "lectura", "referencia": ""}`}}
	c := New(gw, 4, nil)

	res, err := c.Classify(context.Background(), "cuantos filtros hay", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res.Fatal {
		t.Fatal("unexpected fatal result")
	}
	if len(res.Intents) != 1 || res.Intents[0].Category != CategoryInventario {
		t.Fatalf("intents = %+v, want single inventario", res.Intents)
	}
	if res.Intents[0].Operation != OperationRead {
		t.Fatalf("operation = %q, want lectura", res.Intents[0].Operation)
	}
}

func TestClassifyMultiIntentDedupedInOrder(t *testing.T) {
	gw := &fakeGateway{replies: []string{`{"intenciones": ["garantias", "inventario", "garantias"], "tipo_operacion": "lectura"}`}}
	c := New(gw, 4, nil)

	res, err := c.Classify(context.Background(), "stock y garantias", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(res.Intents) != 2 {
		t.Fatalf("got %d intents, want 2 after dedupe", len(res.Intents))
	}
	if res.Intents[0].Category != CategoryGarantias || res.Intents[1].Category != CategoryInventario {
		t.Fatalf("intent order not preserved: %+v", res.Intents)
	}
}

func TestClassifyEmptyIntentsIsNotFatal(t *testing.T) {
	gw := &fakeGateway{replies: []string{`{"intenciones": [], "tipo_operacion": "lectura"}`}}
	c := New(gw, 4, nil)

	res, err := c.Classify(context.Background(), "que hora es", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res.Fatal {
		t.Fatal("out-of-domain question must not be fatal")
	}
	if len(res.Intents) != 0 {
		t.Fatalf("got %d intents, want 0", len(res.Intents))
	}
}

func TestClassifyUnrecognizedMarkerDropped(t *testing.T) {
	gw := &fakeGateway{replies: []string{`{"intenciones": ["no_reconocida"], "tipo_operacion": "lectura"}`}}
	c := New(gw, 4, nil)

	res, err := c.Classify(context.Background(), "asdf", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(res.Intents) != 0 || res.Fatal {
		t.Fatalf("marker category leaked: %+v", res)
	}
}

func TestClassifyBadSchemaAdvancesToNextReply(t *testing.T) {
	gw := &fakeGateway{replies: []string{
		`{"intenciones": ["finanzas"], "tipo_operacion": "lectura"}`,
		`{"intenciones": ["repuestos"], "tipo_operacion": "lectura"}`,
	}}
	c := New(gw, 4, nil)

	res, err := c.Classify(context.Background(), "dame el catalogo", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(res.Intents) != 1 || res.Intents[0].Category != CategoryRepuestos {
		t.Fatalf("schema failure did not fall through to valid reply: %+v", res.Intents)
	}
}

func TestClassifyExhaustionIsFatal(t *testing.T) {
	gw := &fakeGateway{err: llm.ErrAllProvidersExhausted}
	c := New(gw, 4, nil)

	res, err := c.Classify(context.Background(), "cuantos filtros hay", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !res.Fatal || res.FatalCause == "" {
		t.Fatalf("expected fatal result, got %+v", res)
	}
}

func TestClassifyCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gw := &fakeGateway{err: context.Canceled}
	c := New(gw, 4, nil)

	_, err := c.Classify(ctx, "cuantos filtros hay", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestClassifyWriteOperationAndReference(t *testing.T) {
	gw := &fakeGateway{replies: []string{`{"intenciones": ["repuestos"], "tipo_operacion": "insertar", "referencia": "ABC-123"}`}}
	c := New(gw, 4, nil)

	res, err := c.Classify(context.Background(), "agrega el repuesto ABC-123", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	intent := res.Intents[0]
	if !intent.Operation.IsWrite() {
		t.Fatalf("operation %q not detected as write", intent.Operation)
	}
	if intent.Params["referencia"] != "ABC-123" {
		t.Fatalf("referencia param = %q, want ABC-123", intent.Params["referencia"])
	}
}

func TestClassifyPromptCarriesBoundedHistory(t *testing.T) {
	gw := &fakeGateway{replies: []string{`{"intenciones": ["inventario"], "tipo_operacion": "lectura"}`}}
	c := New(gw, 2, nil)

	history := []memory.Turn{
		{Question: "vieja-1", Answer: "r1"},
		{Question: "vieja-2", Answer: "r2"},
		{Question: "reciente-1", Answer: "r3"},
		{Question: "reciente-2", Answer: "r4"},
	}
	if _, err := c.Classify(context.Background(), "y el stock?", history); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	prompt := gw.prompts[0]
	for _, want := range []string{"reciente-1", "reciente-2", "y el stock?"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q: %s", want, prompt)
		}
	}
	for _, not := range []string{"vieja-1", "vieja-2"} {
		if strings.Contains(prompt, not) {
			t.Fatalf("prompt carries turn outside the window %q: %s", not, prompt)
		}
	}
}
