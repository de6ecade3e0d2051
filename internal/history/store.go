// Package history owns the canonical per-session conversation history:
// a durable keyed store plus the merge/truncation policy applied before
// each engine invocation.
package history

import (
	"context"
	"sync"

	"chatrelay/internal/models"
)

// Store maps a session id to its ordered message sequence.
//
// Get returns an empty slice for an unknown session id, never an error.
// Set replaces the stored sequence wholesale; the last writer wins. No
// locking is provided across concurrent requests for the same session,
// so interleaved read-modify-write cycles can lose an update, which
// callers accept.
type Store interface {
	Get(ctx context.Context, sessionID string) ([]models.Message, error)
	Set(ctx context.Context, sessionID string, messages []models.Message) error
}

// MemoryStore keeps histories in process memory. It is the default backend
// for stateless deployments, where clients resubmit their transcript, and
// for tests.
type MemoryStore struct {
	mu        sync.RWMutex
	histories map[string][]models.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{histories: make(map[string][]models.Message)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.histories[sessionID]
	out := make([]models.Message, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, sessionID string, messages []models.Message) error {
	cloned := make([]models.Message, len(messages))
	copy(cloned, messages)
	s.mu.Lock()
	s.histories[sessionID] = cloned
	s.mu.Unlock()
	return nil
}
