package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	errorspkg "github.com/sweetpotato0/reasonchain/errors"
	"github.com/sweetpotato0/reasonchain/history"
)

// Placeholder is returned by LastTrace when no reasoning has been recorded.
const Placeholder = "No reasoning available"

// State represents the state of a session
type State string

const (
	StateActive State = "active"
	StateClosed State = "closed"
)

// Session owns the reasoning-trace history for one chat surface. It is
// created by the caller and passed by reference into the orchestrator, so no
// process-wide mutable state survives across unrelated sessions.
type Session struct {
	id        string
	mu        sync.RWMutex
	state     State
	store     history.Store
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]any
}

// New creates an active session backed by the given trace store.
func New(store history.Store) *Session {
	return &Session{
		id:        uuid.NewString(),
		state:     StateActive,
		store:     store,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// State returns the current session state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// AppendTrace records a completed reasoning trace at the end of the history.
func (s *Session) AppendTrace(ctx context.Context, trace *history.Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return fmt.Errorf("session is not active (state: %s)", s.state)
	}

	s.UpdatedAt = time.Now()
	return s.store.Append(ctx, trace)
}

// LastTrace returns the content of the most recently appended trace, or the
// fixed placeholder when the history is empty.
func (s *Session) LastTrace(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trace, err := s.store.Last(ctx)
	if err != nil {
		if errors.Is(err, errorspkg.ErrNotFound) {
			return Placeholder, nil
		}
		return "", err
	}
	return trace.Content, nil
}

// TraceCount returns the number of traces recorded in this session.
func (s *Session) TraceCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Len(ctx)
}

// Traces returns all traces in submission order.
func (s *Session) Traces(ctx context.Context) ([]*history.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.List(ctx)
}

// SetMetadata sets metadata for the session
func (s *Session) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[key] = value
	s.UpdatedAt = time.Now()
}

// GetMetadata returns metadata for the session
func (s *Session) GetMetadata(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Metadata == nil {
		return nil, false
	}
	value, ok := s.Metadata[key]
	return value, ok
}

// Close closes the session and its underlying store.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return fmt.Errorf("session already closed")
	}

	s.state = StateClosed
	s.UpdatedAt = time.Now()
	return s.store.Close()
}
