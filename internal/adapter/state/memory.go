package state

import (
	"context"
	"sync"
	"time"

	"wanderbot/internal/domain"
)

// MemoryStore keeps conversation history in process memory. It is the default
// backend and the one integration tests run against. History does not survive
// a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
}

type memoryRecord struct {
	turns     []domain.Turn
	updatedAt time.Time
}

// NewMemoryStore creates an empty in-memory conversation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryRecord)}
}

// Load returns a copy of the user's turns so callers cannot mutate the
// stored history.
func (s *MemoryStore) Load(_ context.Context, userID string) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	cp := make([]domain.Turn, len(rec.turns))
	copy(cp, rec.turns)
	return cp, nil
}

func (s *MemoryStore) Append(_ context.Context, userID, role, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		rec = &memoryRecord{}
		s.records[userID] = rec
	}
	now := time.Now().UTC()
	rec.turns = append(rec.turns, domain.Turn{Role: role, Text: text, Timestamp: now})
	rec.updatedAt = now
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

// Len reports how many users currently have history.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// ReapIdle drops every record whose last append is older than maxIdle and
// returns the number of records removed. The retention cron job calls this
// periodically so an always-on process does not accumulate history forever.
func (s *MemoryStore) ReapIdle(maxIdle time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	reaped := 0
	for userID, rec := range s.records {
		if rec.updatedAt.Before(cutoff) {
			delete(s.records, userID)
			reaped++
		}
	}
	return reaped
}
