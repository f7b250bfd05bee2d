package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestInMemoryStoreBoundsTurnsPerSession(t *testing.T) {
	store := NewInMemoryStore(3, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		turn := Turn{Question: fmt.Sprintf("p%d", i), Answer: fmt.Sprintf("r%d", i)}
		if err := store.Append(ctx, "s1", turn); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	turns, err := store.Recent(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(turns))
	}
	if turns[0].Question != "p2" || turns[2].Question != "p4" {
		t.Fatalf("oldest turns were not evicted first: %q .. %q", turns[0].Question, turns[2].Question)
	}
}

func TestInMemoryStoreUnknownSessionIsEmpty(t *testing.T) {
	store := NewInMemoryStore(5, 10, time.Minute)

	turns, err := store.Recent(context.Background(), "nope", 5)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("got %d turns for unknown session, want 0", len(turns))
	}
}

func TestInMemoryStoreRecentLimit(t *testing.T) {
	store := NewInMemoryStore(10, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if err := store.Append(ctx, "s1", Turn{Question: fmt.Sprintf("p%d", i)}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	turns, err := store.Recent(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Question != "p4" || turns[1].Question != "p5" {
		t.Fatalf("limit did not keep the newest turns: %q, %q", turns[0].Question, turns[1].Question)
	}
}

func TestInMemoryStoreSessionsDoNotInterleave(t *testing.T) {
	store := NewInMemoryStore(50, 10, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, session := range []string{"a", "b"} {
		session := session
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				turn := Turn{Question: fmt.Sprintf("%s-%d", session, i)}
				if err := store.Append(ctx, session, turn); err != nil {
					t.Errorf("Append(%s) error = %v", session, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for _, session := range []string{"a", "b"} {
		turns, err := store.Recent(ctx, session, 0)
		if err != nil {
			t.Fatalf("Recent(%s) error = %v", session, err)
		}
		if len(turns) != 20 {
			t.Fatalf("session %s has %d turns, want 20", session, len(turns))
		}
		for i, turn := range turns {
			want := fmt.Sprintf("%s-%d", session, i)
			if turn.Question != want {
				t.Fatalf("session %s turn %d = %q, want %q", session, i, turn.Question, want)
			}
		}
	}
}

func TestInMemoryStoreEvictsOldestSessionAtCap(t *testing.T) {
	store := NewInMemoryStore(5, 2, time.Minute)
	ctx := context.Background()

	for _, session := range []string{"first", "second", "third"} {
		if err := store.Append(ctx, session, Turn{Question: "hola"}); err != nil {
			t.Fatalf("Append(%s) error = %v", session, err)
		}
	}

	turns, err := store.Recent(ctx, "first", 0)
	if err != nil {
		t.Fatalf("Recent(first) error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("oldest session survived past the cap with %d turns", len(turns))
	}
	for _, session := range []string{"second", "third"} {
		turns, err := store.Recent(ctx, session, 0)
		if err != nil {
			t.Fatalf("Recent(%s) error = %v", session, err)
		}
		if len(turns) != 1 {
			t.Fatalf("session %s has %d turns, want 1", session, len(turns))
		}
	}
}

func TestInMemoryStoreFillsTurnDefaults(t *testing.T) {
	store := NewInMemoryStore(5, 10, time.Minute)
	ctx := context.Background()

	if err := store.Append(ctx, "s1", Turn{Question: "p", Answer: "r"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	turns, err := store.Recent(ctx, "s1", 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if turns[0].ID == "" {
		t.Fatal("turn ID was not generated")
	}
	if turns[0].CreatedAt.IsZero() {
		t.Fatal("turn CreatedAt was not set")
	}
	if turns[0].SessionID != "s1" {
		t.Fatalf("turn SessionID = %q, want s1", turns[0].SessionID)
	}
}
