package memory

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewStore creates a postgres-backed store when a pool is available,
// otherwise an in-memory one bounded by maxTurns and maxSessions.
func NewStore(ctx context.Context, pool *pgxpool.Pool, maxTurns, maxSessions int, retention time.Duration) (Store, error) {
	if pool == nil {
		return NewInMemoryStore(maxTurns, maxSessions, retention), nil
	}
	return NewPostgresStore(ctx, pool, maxTurns)
}
