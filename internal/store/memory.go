package store

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxMessages is the per-session capacity of a MemoryStore.
const DefaultMaxMessages = 10

// MemoryStore keeps the newest messages of each session in process memory.
// Older messages are evicted once a session holds max messages.
type MemoryStore struct {
	// max is the per-session capacity.
	max int
	// mu guards logs.
	mu sync.Mutex
	// logs maps session id to its retained messages, oldest first.
	logs map[string][]Message
}

// NewMemoryStore returns a MemoryStore keeping max messages per session. A
// non-positive max uses DefaultMaxMessages.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = DefaultMaxMessages
	}
	return &MemoryStore{max: max, logs: make(map[string][]Message)}
}

// Append stores msgs and evicts the oldest messages beyond capacity.
func (s *MemoryStore) Append(_ context.Context, sessionID string, msgs ...Message) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[sessionID]
	for _, m := range msgs {
		stamp(&m, now)
		log = append(log, m)
	}
	if over := len(log) - s.max; over > 0 {
		log = append([]Message(nil), log[over:]...)
	}
	s.logs[sessionID] = log
	return nil
}

// Recent returns a copy of the newest n messages, oldest first.
func (s *MemoryStore) Recent(_ context.Context, sessionID string, n int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[sessionID]
	if n < len(log) {
		log = log[len(log)-n:]
	}
	out := make([]Message, len(log))
	copy(out, log)
	return out, nil
}

// Count returns the number of retained messages.
func (s *MemoryStore) Count(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs[sessionID]), nil
}

// Clear drops the session's messages.
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, sessionID)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
