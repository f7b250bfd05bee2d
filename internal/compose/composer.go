// Package compose turns query outcomes into a spoken-Spanish answer.
// Whatever happened upstream, Compose always returns something a
// text-to-speech engine can read aloud.
package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mincaelectric/inventory-agent/internal/classifier"
	"github.com/mincaelectric/inventory-agent/internal/dispatch"
	"github.com/mincaelectric/inventory-agent/internal/llm"
	"github.com/mincaelectric/inventory-agent/internal/memory"
)

const (
	// AnswerFatal is spoken when classification itself was impossible.
	AnswerFatal = "Lamento mucho, ocurrió un problema interno al procesar tu pregunta. Por favor, intenta de nuevo en un momento."

	// AnswerUnrecognized is spoken when the question is out of domain.
	AnswerUnrecognized = "No entendí del todo tu pregunta. ¿Podrías reformularla con más detalle? Puedo ayudarte con información sobre inventario, garantías, movimientos técnicos, solicitudes, conteos o repuestos."

	// AnswerGenerationFailed is spoken when the queries worked but no
	// provider could phrase the answer.
	AnswerGenerationFailed = "Tuve un problema al generar la respuesta, pero las consultas sí se completaron. Por favor, intenta de nuevo."
)

const systemPrompt = `Eres un asistente de voz profesional para Minca Electric, una empresa industrial.
Tu respuesta se va a convertir en audio mediante text-to-speech, por lo que debe sonar natural al escucharse.

REGLAS DE FORMATO:
- Responde siempre en español.
- Sé conciso pero completo. Evita listas largas porque no se ven en audio.
- Los números escríbelos en palabras cuando es natural: "hay quince unidades" en lugar de "15".
  Excepto para referencias de repuestos como "ABC-123", esas se dejan tal cual.
- Las fechas sintetízalas de forma natural: "el tres de marzo" en lugar de "2025-03-03T00:00:00".
- No uses viñetas, guiones ni numeración. Escribe en prosa.
- Si hay muchos datos, prioriza los más relevantes y menciona que hay más disponibles.

REGLAS DE CONTENIDO:
- Responde ÚNICAMENTE con información que esté en los datos proporcionados.
- No inventes datos ni hagas suposiciones.
- Si los datos están vacíos, dilo claramente y sugiere reformular.
- Si hay errores parciales (algunas consultas fallaron), menciona qué información no pudo obtenerse.
- Si el usuario hace una referencia a algo anterior en la conversación, úsala para contextualizar.`

// Completer is the slice of the llm gateway the composer needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

type Composer struct {
	gateway Completer
	logger  *zap.Logger
}

func New(gateway Completer, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{gateway: gateway, logger: logger}
}

// Compose produces the final spoken answer. Fatal classification and
// out-of-domain questions short-circuit to canned text; everything else
// goes through the model with the collected data as grounding.
func (c *Composer) Compose(ctx context.Context, question string, history []memory.Turn, result classifier.Result, outcomes []dispatch.Outcome) string {
	if result.Fatal {
		return AnswerFatal
	}
	if len(result.Intents) == 0 {
		return AnswerUnrecognized
	}

	req := llm.Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(question, history, outcomes),
		Temperature: 0.4,
		MaxTokens:   1024,
		Tier:        llm.TierQuality,
	}
	answer, err := c.gateway.Complete(ctx, req)
	if err != nil {
		c.logger.Warn("answer generation failed, using canned fallback", zap.Error(err))
		return AnswerGenerationFailed
	}
	return strings.TrimSpace(answer)
}

func buildPrompt(question string, history []memory.Turn, outcomes []dispatch.Outcome) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("--- Historial de la conversación actual ---\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "Usuario: %s\nAsistente: %s\n", turn.Question, turn.Answer)
		}
		b.WriteString("--- Fin del historial ---\n\n")
	}

	fmt.Fprintf(&b, "Pregunta actual del usuario: %s\n\n", question)
	b.WriteString(buildDataContext(outcomes))
	if note := buildErrorNote(outcomes); note != "" {
		b.WriteString("\n")
		b.WriteString(note)
	}
	b.WriteString("\n\nGenera una respuesta natural basándote en estos datos.")
	return b.String()
}

func buildDataContext(outcomes []dispatch.Outcome) string {
	var sections []string
	for _, out := range outcomes {
		if out.Failed() {
			continue
		}
		for _, section := range out.Sections {
			header := fmt.Sprintf("[%s]", section.Source)
			if len(section.Rows) == 0 {
				sections = append(sections, header+"\nNo hay datos en esta categoría.")
				continue
			}
			payload, err := json.Marshal(section.Rows)
			if err != nil {
				sections = append(sections, header+"\nNo hay datos en esta categoría.")
				continue
			}
			sections = append(sections, header+"\n"+string(payload))
		}
	}
	if len(sections) == 0 {
		return "No se encontraron datos en la base de datos."
	}
	return "=== Datos de la base de datos ===\n" + strings.Join(sections, "\n")
}

func buildErrorNote(outcomes []dispatch.Outcome) string {
	var failed []string
	for _, out := range outcomes {
		if out.Failed() {
			failed = append(failed, out.Err)
		}
	}
	if len(failed) == 0 {
		return ""
	}
	return "NOTA: Las siguientes consultas tuvieron problemas y no retornaron datos: " +
		strings.Join(failed, "; ") +
		". Menciona al usuario que esa información no pudo obtenerse en este momento."
}
