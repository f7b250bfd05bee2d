// Package pipeline drives one question through classification, query
// dispatch, answer composition and the memory commit.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mincaelectric/inventory-agent/internal/classifier"
	"github.com/mincaelectric/inventory-agent/internal/compose"
	"github.com/mincaelectric/inventory-agent/internal/dispatch"
	"github.com/mincaelectric/inventory-agent/internal/memory"
	"github.com/mincaelectric/inventory-agent/internal/observability"
	"github.com/mincaelectric/inventory-agent/internal/policy"
)

// Classifier, Dispatcher and Composer are the stage contracts the
// orchestrator consumes; the concrete types live in their own packages.
type Classifier interface {
	Classify(ctx context.Context, question string, history []memory.Turn) (classifier.Result, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, intents []classifier.Intent) []dispatch.Outcome
}

type Composer interface {
	Compose(ctx context.Context, question string, history []memory.Turn, result classifier.Result, outcomes []dispatch.Outcome) string
}

// Response is what one completed turn hands back to the transport.
type Response struct {
	Answer     string   `json:"respuesta"`
	SessionID  string   `json:"session_id"`
	Categories []string `json:"intenciones_detectadas"`
	Errors     []string `json:"errores"`
}

type Orchestrator struct {
	classifier Classifier
	dispatcher Dispatcher
	composer   Composer
	store      memory.Store
	metrics    *observability.Metrics
	logger     *zap.Logger
	maxTurns   int
}

func New(cl Classifier, d Dispatcher, co Composer, store memory.Store, metrics *observability.Metrics, logger *zap.Logger, maxTurns int) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &Orchestrator{
		classifier: cl,
		dispatcher: d,
		composer:   co,
		store:      store,
		metrics:    metrics,
		logger:     logger,
		maxTurns:   maxTurns,
	}
}

// Ask runs the full pipeline for one question. The turn is committed to
// memory exactly once, on the fatal path as well as the happy one, so
// follow-up questions keep their context. Only a caller context error
// aborts without an answer.
func (o *Orchestrator) Ask(ctx context.Context, question, sessionID string) (Response, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	log := o.logger.With(zap.String("session_id", sessionID))

	history, err := o.store.Recent(ctx, sessionID, o.maxTurns)
	if err != nil {
		// Memory is an aid, not a dependency; answer without context.
		log.Warn("reading conversation history failed", zap.Error(err))
		history = nil
	}

	start := time.Now()
	result, err := o.classifier.Classify(ctx, question, history)
	o.metrics.ObserveStage(observability.StageClassify, time.Since(start))
	if err != nil {
		o.countRequest("error")
		return Response{}, err
	}

	var outcomes []dispatch.Outcome
	if !result.Fatal && len(result.Intents) > 0 {
		start = time.Now()
		outcomes = o.dispatcher.Dispatch(ctx, result.Intents)
		o.metrics.ObserveStage(observability.StageDispatch, time.Since(start))
	}

	start = time.Now()
	answer := o.composer.Compose(ctx, question, history, result, outcomes)
	o.metrics.ObserveStage(observability.StageCompose, time.Since(start))

	o.commitTurn(ctx, log, sessionID, question, answer)

	resp := Response{
		Answer:    answer,
		SessionID: sessionID,
	}
	for _, intent := range result.Intents {
		resp.Categories = append(resp.Categories, string(intent.Category))
	}
	if result.Fatal {
		resp.Errors = append(resp.Errors, result.FatalCause)
	}
	for _, out := range outcomes {
		if out.Failed() {
			resp.Errors = append(resp.Errors, out.Err)
		}
	}

	o.countRequest(outcomeLabel(result, outcomes))
	log.Info("turn completed",
		zap.Int("intents", len(result.Intents)),
		zap.Int("errors", len(resp.Errors)),
		zap.Bool("fatal", result.Fatal),
	)
	return resp, nil
}

// commitTurn appends the exchange to session memory, masking PII first.
// A memory failure degrades context for the next question but never
// fails the current one.
func (o *Orchestrator) commitTurn(ctx context.Context, log *zap.Logger, sessionID, question, answer string) {
	start := time.Now()
	defer func() {
		o.metrics.ObserveStage(observability.StageMemoryCommit, time.Since(start))
	}()

	cleanQuestion, redactedQ := policy.RedactPII(question)
	cleanAnswer, redactedA := policy.RedactPII(answer)
	turn := memory.Turn{
		Question: cleanQuestion,
		Answer:   cleanAnswer,
		Redacted: redactedQ || redactedA,
	}
	if err := o.store.Append(ctx, sessionID, turn); err != nil {
		log.Warn("memory commit failed", zap.Error(err))
	}
	if turn.Redacted {
		o.metrics.ObserveIndicator("pii_redacted")
	}
	if counter, ok := o.store.(interface{ SessionCount() int }); ok && o.metrics != nil {
		o.metrics.ActiveSessions.Set(float64(counter.SessionCount()))
	}
}

func (o *Orchestrator) countRequest(outcome string) {
	if o.metrics == nil {
		return
	}
	o.metrics.Requests.WithLabelValues(outcome).Inc()
}

func outcomeLabel(result classifier.Result, outcomes []dispatch.Outcome) string {
	switch {
	case result.Fatal:
		return "fatal"
	case len(result.Intents) == 0:
		return "out_of_domain"
	default:
		for _, out := range outcomes {
			if out.Failed() {
				return "partial"
			}
		}
		return "answered"
	}
}
