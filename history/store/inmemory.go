package store

import (
	"context"
	"fmt"
	"sync"

	errorspkg "github.com/sweetpotato0/reasonchain/errors"
	"github.com/sweetpotato0/reasonchain/history"
)

// InMemoryStore implements history.Store using in-memory storage. This is the
// default: all state is process-lifetime and reset on restart.
type InMemoryStore struct {
	traces []*history.Trace
	mu     sync.RWMutex
}

// NewInMemoryStore creates a new in-memory trace store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		traces: make([]*history.Trace, 0),
	}
}

// Append adds a trace to the end of the history.
func (s *InMemoryStore) Append(ctx context.Context, trace *history.Trace) error {
	if trace == nil {
		return fmt.Errorf("trace cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.traces = append(s.traces, trace)
	return nil
}

// Last returns the most recently appended trace.
func (s *InMemoryStore) Last(ctx context.Context) (*history.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.traces) == 0 {
		return nil, errorspkg.ErrNotFound
	}
	return s.traces[len(s.traces)-1], nil
}

// Len returns the number of traces in the history.
func (s *InMemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.traces), nil
}

// List returns all traces in submission order.
func (s *InMemoryStore) List(ctx context.Context) ([]*history.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*history.Trace, len(s.traces))
	copy(out, s.traces)
	return out, nil
}

// Clear removes all traces from the store.
func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.traces = make([]*history.Trace, 0)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
