package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Trace is one reasoning trace: the concatenated intermediate thinking text a
// reasoning model emitted for a single turn.
type Trace struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewTrace creates a trace with a fresh ID.
func NewTrace(content string) *Trace {
	return &Trace{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Store keeps reasoning traces in submission order. Append is the only
// mutation besides Clear; Last returns the most recently appended trace.
type Store interface {
	// Append adds a trace to the end of the history.
	Append(ctx context.Context, trace *Trace) error

	// Last returns the most recently appended trace, or errors.ErrNotFound
	// when the history is empty.
	Last(ctx context.Context) (*Trace, error)

	// Len returns the number of traces in the history.
	Len(ctx context.Context) (int, error)

	// List returns all traces in submission order.
	List(ctx context.Context) ([]*Trace, error)

	// Clear removes all traces.
	Clear(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}
