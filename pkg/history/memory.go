package history

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store, suitable for single-process deployments
// and tests. Transcripts are capped per conversation to bound memory.
type MemoryStore struct {
	mu    sync.Mutex
	turns map[string][]Turn
	cap   int
}

// DefaultMemoryCap is the per-conversation turn cap of a MemoryStore.
const DefaultMemoryCap = 200

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore keeping at most cap turns per
// conversation; cap <= 0 means DefaultMemoryCap.
func NewMemoryStore(cap int) *MemoryStore {
	if cap <= 0 {
		cap = DefaultMemoryCap
	}
	return &MemoryStore{turns: make(map[string][]Turn), cap: cap}
}

// AppendTurn implements Store.
func (s *MemoryStore) AppendTurn(_ context.Context, conversationID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := append(s.turns[conversationID], turn)
	if len(ts) > s.cap {
		ts = ts[len(ts)-s.cap:]
	}
	s.turns[conversationID] = ts
	return nil
}

// RecentTurns implements Store.
func (s *MemoryStore) RecentTurns(_ context.Context, conversationID string, limit int) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.turns[conversationID]
	if limit > 0 && len(ts) > limit {
		ts = ts[len(ts)-limit:]
	}
	out := make([]Turn, len(ts))
	copy(out, ts)
	return out, nil
}
