package state

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"wanderbot/internal/domain"
)

func TestMemoryLoadEmpty(t *testing.T) {
	s := NewMemoryStore()
	turns, err := s.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected empty history, got %d turns", len(turns))
	}
}

func TestMemoryAppendPreservesOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAgent
		}
		if err := s.Append(ctx, "u1", role, fmt.Sprintf("turn-%d", i)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	turns, err := s.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(turns) != 5 {
		t.Fatalf("expected 5 turns, got %d", len(turns))
	}
	for i, turn := range turns {
		want := fmt.Sprintf("turn-%d", i)
		if turn.Text != want {
			t.Errorf("turn %d: text = %q, want %q", i, turn.Text, want)
		}
		if turn.Timestamp.IsZero() {
			t.Errorf("turn %d: timestamp not set", i)
		}
	}
}

func TestMemoryAppendDoesNotDeduplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.Append(ctx, "u1", domain.RoleUser, "same text"); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	turns, _ := s.Load(ctx, "u1")
	if len(turns) != 2 {
		t.Errorf("identical appends must produce distinct turns, got %d", len(turns))
	}
}

func TestMemoryClear(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Append(ctx, "u1", domain.RoleUser, "hello"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Clear(ctx, "u1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	turns, err := s.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load after Clear: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected empty history after Clear, got %d turns", len(turns))
	}

	// Clearing a user with no record is not an error.
	if err := s.Clear(ctx, "never-seen"); err != nil {
		t.Errorf("Clear on absent record: %v", err)
	}
}

func TestMemoryLoadReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Append(ctx, "u1", domain.RoleUser, "original"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	turns, _ := s.Load(ctx, "u1")
	turns[0].Text = "mutated"

	again, _ := s.Load(ctx, "u1")
	if again[0].Text != "original" {
		t.Error("caller mutation leaked into stored history")
	}
}

func TestMemoryConcurrentAppends(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_ = s.Append(ctx, "shared", domain.RoleUser, fmt.Sprintf("g%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	turns, err := s.Load(ctx, "shared")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(turns) != 100 {
		t.Errorf("expected 100 turns, got %d", len(turns))
	}
}

func TestMemoryReapIdle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Append(ctx, "stale", domain.RoleUser, "old"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, "fresh", domain.RoleUser, "new"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	s.mu.Lock()
	s.records["stale"].updatedAt = time.Now().UTC().Add(-48 * time.Hour)
	s.mu.Unlock()

	if got := s.ReapIdle(24 * time.Hour); got != 1 {
		t.Errorf("ReapIdle = %d, want 1", got)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
	turns, _ := s.Load(ctx, "fresh")
	if len(turns) != 1 {
		t.Error("fresh record should survive the reap")
	}
}
