package memory

import (
	"context"
	"time"
)

// Turn is one completed question/answer exchange of a session.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Redacted  bool      `json:"redacted"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps the bounded conversational history per session.
// Recent returns turns in chronological order, oldest first.
type Store interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	Append(ctx context.Context, sessionID string, turn Turn) error
	Close() error
}
