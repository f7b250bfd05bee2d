package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

type sessionEntry struct {
	mu    sync.Mutex
	turns []Turn
}

// InMemoryStore bounds every session to maxTurns exchanges and the whole
// store to maxSessions live sessions. Idle sessions expire after the
// retention window.
type InMemoryStore struct {
	mu          sync.Mutex
	sessions    *gocache.Cache
	order       []string
	maxTurns    int
	maxSessions int
}

func NewInMemoryStore(maxTurns, maxSessions int, retention time.Duration) *InMemoryStore {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	if maxSessions <= 0 {
		maxSessions = 100
	}
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	return &InMemoryStore{
		sessions:    gocache.New(retention, retention/2),
		maxTurns:    maxTurns,
		maxSessions: maxSessions,
	}
}

func (s *InMemoryStore) Recent(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	raw, ok := s.sessions.Get(sessionID)
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	entry := raw.(*sessionEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	turns := entry.turns
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *InMemoryStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	turn.SessionID = sessionID

	entry := s.entryFor(sessionID)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.turns = append(entry.turns, turn)
	if len(entry.turns) > s.maxTurns {
		// Drop from the front so the slice keeps the newest turns.
		entry.turns = entry.turns[len(entry.turns)-s.maxTurns:]
	}
	return nil
}

func (s *InMemoryStore) entryFor(sessionID string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if raw, ok := s.sessions.Get(sessionID); ok {
		return raw.(*sessionEntry)
	}
	s.evictForCapacityLocked()
	entry := &sessionEntry{}
	s.sessions.SetDefault(sessionID, entry)
	s.order = append(s.order, sessionID)
	return entry
}

// evictForCapacityLocked makes room for a new session by dropping the
// oldest live one once the cap is reached. Expired cache entries only
// need their order slot reclaimed.
func (s *InMemoryStore) evictForCapacityLocked() {
	for len(s.order) > 0 && s.sessions.ItemCount() >= s.maxSessions {
		oldest := s.order[0]
		s.order = s.order[1:]
		s.sessions.Delete(oldest)
	}
	// Compact order slots left behind by TTL expiry.
	if len(s.order) > s.sessions.ItemCount() {
		live := s.order[:0]
		for _, id := range s.order {
			if _, ok := s.sessions.Get(id); ok {
				live = append(live, id)
			}
		}
		s.order = live
	}
}

// SessionCount reports how many sessions are currently retained.
func (s *InMemoryStore) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.ItemCount()
}

func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Flush()
	s.order = nil
	return nil
}
