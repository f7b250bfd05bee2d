package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mincaelectric/inventory-agent/internal/llm"
	"github.com/mincaelectric/inventory-agent/internal/memory"
)

// Category names one of the fixed data domains questions can target.
// Values are Spanish because they travel through the model contract
// and the query registry unchanged.
type Category string

const (
	CategoryInventario          Category = "inventario"
	CategoryGarantias           Category = "garantias"
	CategoryMovimientosTecnicos Category = "movimientos_tecnicos"
	CategorySolicitudes         Category = "solicitudes"
	CategoryConteos             Category = "conteos"
	CategoryRepuestos           Category = "repuestos"
)

// categoryUnrecognized is a model-side marker, never a dispatchable category.
const categoryUnrecognized = "no_reconocida"

var knownCategories = map[Category]bool{
	CategoryInventario:          true,
	CategoryGarantias:           true,
	CategoryMovimientosTecnicos: true,
	CategorySolicitudes:         true,
	CategoryConteos:             true,
	CategoryRepuestos:           true,
}

// Categories returns every dispatchable category in stable order.
func Categories() []Category {
	return []Category{
		CategoryInventario,
		CategoryGarantias,
		CategoryMovimientosTecnicos,
		CategorySolicitudes,
		CategoryConteos,
		CategoryRepuestos,
	}
}

// Operation is what the user wants done with the data.
type Operation string

const (
	OperationRead   Operation = "lectura"
	OperationInsert Operation = "insertar"
	OperationUpdate Operation = "actualizar"
	OperationDelete Operation = "eliminar"
)

func (op Operation) IsWrite() bool {
	return op == OperationInsert || op == OperationUpdate || op == OperationDelete
}

func parseOperation(raw string) (Operation, error) {
	switch op := Operation(strings.TrimSpace(strings.ToLower(raw))); op {
	case OperationRead, OperationInsert, OperationUpdate, OperationDelete:
		return op, nil
	default:
		return "", fmt.Errorf("unknown operation %q", raw)
	}
}

// Intent is one classified information need.
type Intent struct {
	Category  Category
	Operation Operation
	// Params are optional bound filters, currently only "referencia".
	Params map[string]string
}

// Result is the classifier verdict for one question. An empty Intents
// slice with Fatal=false means the question is out of domain.
type Result struct {
	Intents    []Intent
	Fatal      bool
	FatalCause string
}

// StructuredCompleter is the slice of the llm gateway the classifier needs.
type StructuredCompleter interface {
	CompleteStructured(ctx context.Context, req llm.Request, decode func(raw string) error) error
}

const systemPrompt = `Eres un clasificador de intenciones para un sistema de inventario industrial llamado Minca Electric.

Tu trabajo es analizar la pregunta del usuario y retornar ÚNICAMENTE un objeto JSON válido, sin texto adicional, sin explicaciones, sin bloques de código.

Las categorías de información disponibles son:
- "inventario": cantidades, posiciones, stock de repuestos en localizaciones
- "garantias": garantías de repuestos, estados (pendiente, resuelta), motivos de falla
- "movimientos_tecnicos": movimientos de repuestos realizados por técnicos, órdenes de trabajo
- "solicitudes": solicitudes de repuestos entre localizaciones, trazabilidad, estados
- "conteos": auditorías físicas, conteos, diferencias encontradas
- "repuestos": información del catálogo de repuestos (referencias, marcas, descripciones)

Los tipos de operación son:
- "lectura": el usuario solo quiere información
- "insertar": el usuario quiere agregar datos nuevos
- "actualizar": el usuario quiere modificar datos existentes
- "eliminar": el usuario quiere borrar datos

REGLAS:
- Si la pregunta requiere información de varias categorías, incluye todas.
- Si no entiendes la pregunta o no es del dominio del inventario, retorna intenciones: [].
- Si el usuario menciona una referencia concreta de repuesto, inclúyela en "referencia".
- El sistema solo soporta lectura por ahora, pero detecta igualmente el tipo de operación real.

Retorna SOLO esto (sin comillas extras, sin markdown):
{"intenciones": ["categoria1", "categoria2"], "tipo_operacion": "lectura", "referencia": ""}

Ejemplos:
- "¿Cuántos filtros hay en la bodega?" → {"intenciones": ["inventario"], "tipo_operacion": "lectura", "referencia": ""}
- "¿Cuál es el estado de la garantía del repuesto ABC-123?" → {"intenciones": ["garantias"], "tipo_operacion": "lectura", "referencia": "ABC-123"}
- "Dame el stock y las garantías pendientes" → {"intenciones": ["inventario", "garantias"], "tipo_operacion": "lectura", "referencia": ""}
- "Agrega un nuevo repuesto" → {"intenciones": ["repuestos"], "tipo_operacion": "insertar", "referencia": ""}
- "¿Qué hora es?" → {"intenciones": [], "tipo_operacion": "lectura", "referencia": ""}`

// Classifier turns a free-form question into dispatchable intents.
type Classifier struct {
	gateway      StructuredCompleter
	memoryWindow int
	logger       *zap.Logger
}

func New(gateway StructuredCompleter, memoryWindow int, logger *zap.Logger) *Classifier {
	if memoryWindow <= 0 {
		memoryWindow = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{gateway: gateway, memoryWindow: memoryWindow, logger: logger}
}

type classification struct {
	Intenciones   []string `json:"intenciones"`
	TipoOperacion string   `json:"tipo_operacion"`
	Referencia    string   `json:"referencia"`
}

// Classify asks the model for intents. Provider and schema failures are
// absorbed by the gateway's fallback; only full exhaustion is fatal.
// A context error from the caller is returned as-is.
func (c *Classifier) Classify(ctx context.Context, question string, history []memory.Turn) (Result, error) {
	req := llm.Request{
		System:      systemPrompt,
		Prompt:      c.buildPrompt(question, history),
		Temperature: 0.1,
		MaxTokens:   256,
		Tier:        llm.TierFast,
	}

	var parsed classification
	err := c.gateway.CompleteStructured(ctx, req, func(raw string) error {
		payload := llm.ExtractJSON(raw)
		if payload == "" {
			return errors.New("no JSON object in completion")
		}
		var candidate classification
		if err := json.Unmarshal([]byte(payload), &candidate); err != nil {
			return fmt.Errorf("decode classification: %w", err)
		}
		if err := validate(candidate); err != nil {
			return err
		}
		parsed = candidate
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if errors.Is(err, llm.ErrAllProvidersExhausted) {
			c.logger.Error("classification unavailable, no provider answered", zap.Error(err))
			return Result{Fatal: true, FatalCause: "no se pudo clasificar la pregunta"}, nil
		}
		return Result{}, err
	}

	op, _ := parseOperation(parsed.TipoOperacion)
	intents := buildIntents(parsed, op)
	c.logger.Info("question classified",
		zap.Int("intents", len(intents)),
		zap.String("operation", string(op)),
	)
	return Result{Intents: intents}, nil
}

// validate runs inside the gateway decode hook so a malformed verdict
// escalates to the next provider instead of poisoning the pipeline.
func validate(c classification) error {
	if _, err := parseOperation(c.TipoOperacion); err != nil {
		return err
	}
	for _, raw := range c.Intenciones {
		name := strings.TrimSpace(strings.ToLower(raw))
		if name == categoryUnrecognized || name == "" {
			continue
		}
		if !knownCategories[Category(name)] {
			return fmt.Errorf("unknown category %q", raw)
		}
	}
	return nil
}

func buildIntents(c classification, op Operation) []Intent {
	var params map[string]string
	if ref := strings.TrimSpace(c.Referencia); ref != "" {
		params = map[string]string{"referencia": ref}
	}

	seen := make(map[Category]bool, len(c.Intenciones))
	intents := make([]Intent, 0, len(c.Intenciones))
	for _, raw := range c.Intenciones {
		name := Category(strings.TrimSpace(strings.ToLower(raw)))
		if name == categoryUnrecognized || name == "" || seen[name] {
			continue
		}
		seen[name] = true
		intents = append(intents, Intent{Category: name, Operation: op, Params: params})
	}
	return intents
}

func (c *Classifier) buildPrompt(question string, history []memory.Turn) string {
	var b strings.Builder
	if len(history) > 0 {
		start := 0
		if len(history) > c.memoryWindow {
			start = len(history) - c.memoryWindow
		}
		b.WriteString("Contexto de la conversación previa:\n")
		for _, turn := range history[start:] {
			fmt.Fprintf(&b, "Usuario: %s\nAgente: %s\n", turn.Question, turn.Answer)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Pregunta actual del usuario: %s", question)
	return b.String()
}
