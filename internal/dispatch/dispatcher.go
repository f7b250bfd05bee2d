package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mincaelectric/inventory-agent/internal/classifier"
	"github.com/mincaelectric/inventory-agent/internal/inventory"
	"github.com/mincaelectric/inventory-agent/internal/observability"
)

// Outcome is the independent result of one intent's query. Err carries a
// human-readable cause when the query failed; Sections is empty then.
type Outcome struct {
	Category classifier.Category
	Sections []inventory.Section
	Err      string
}

// Failed reports whether this intent produced no usable data.
func (o Outcome) Failed() bool { return o.Err != "" }

// Dispatcher fans classified intents out over the fixed query registry.
type Dispatcher struct {
	pool    *pgxpool.Pool
	queries map[classifier.Category]inventory.QueryFunc
	metrics *observability.Metrics
	logger  *zap.Logger
}

func New(pool *pgxpool.Pool, queries map[classifier.Category]inventory.QueryFunc, metrics *observability.Metrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{pool: pool, queries: queries, metrics: metrics, logger: logger}
}

// Dispatch runs every intent concurrently and returns one outcome per
// intent, in intent order. A failing intent never aborts the others.
func (d *Dispatcher) Dispatch(ctx context.Context, intents []classifier.Intent) []Outcome {
	outcomes := make([]Outcome, len(intents))

	var wg sync.WaitGroup
	for i, intent := range intents {
		i, intent := i, intent
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = d.run(ctx, intent)
		}()
	}
	wg.Wait()

	return outcomes
}

func (d *Dispatcher) run(ctx context.Context, intent classifier.Intent) Outcome {
	out := Outcome{Category: intent.Category}

	if intent.Operation.IsWrite() {
		// Write support is planned but the worker side does not exist
		// yet; answer honestly instead of pretending.
		out.Err = fmt.Sprintf("la operación %q sobre %s aún no está disponible, por ahora solo puedo consultar información", intent.Operation, intent.Category)
		d.observe(intent.Category, "write_unsupported")
		return out
	}

	query, ok := d.queries[intent.Category]
	if !ok {
		out.Err = fmt.Sprintf("no hay consulta definida para la categoría %s", intent.Category)
		d.observe(intent.Category, "unknown_category")
		return out
	}
	if d.pool == nil {
		out.Err = fmt.Sprintf("la base de datos de inventario no está disponible para consultar %s", intent.Category)
		d.observe(intent.Category, "no_database")
		return out
	}

	sections, err := query(ctx, d.pool, intent.Params)
	if err != nil {
		d.logger.Warn("intent query failed",
			zap.String("category", string(intent.Category)),
			zap.Error(err),
		)
		out.Err = fmt.Sprintf("error consultando %s", intent.Category)
		d.observe(intent.Category, "error")
		return out
	}

	out.Sections = sections
	d.observe(intent.Category, "ok")
	return out
}

func (d *Dispatcher) observe(cat classifier.Category, status string) {
	if d.metrics == nil {
		return
	}
	d.metrics.QueryOutcomes.WithLabelValues(string(cat), status).Inc()
}
