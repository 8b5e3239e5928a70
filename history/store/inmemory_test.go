package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	errorspkg "github.com/sweetpotato0/reasonchain/errors"
	"github.com/sweetpotato0/reasonchain/history"
)

func TestInMemoryStoreAppendAndLast(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.Append(ctx, history.NewTrace("first")); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if err := s.Append(ctx, history.NewTrace("second")); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	last, err := s.Last(ctx)
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}
	if last.Content != "second" {
		t.Errorf("expected last trace %q, got %q", "second", last.Content)
	}
}

func TestInMemoryStoreEmptyLast(t *testing.T) {
	s := NewInMemoryStore()

	_, err := s.Last(context.Background())
	if !errors.Is(err, errorspkg.ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty store, got %v", err)
	}
}

func TestInMemoryStoreListPreservesOrder(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Append(ctx, history.NewTrace(fmt.Sprintf("trace %d", i))); err != nil {
			t.Fatal(err)
		}
	}

	traces, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(traces) != 5 {
		t.Fatalf("expected 5 traces, got %d", len(traces))
	}
	for i, trace := range traces {
		if want := fmt.Sprintf("trace %d", i); trace.Content != want {
			t.Errorf("trace %d: expected %q, got %q", i, want, trace.Content)
		}
	}
}

func TestInMemoryStoreLenAndClear(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	s.Append(ctx, history.NewTrace("a"))
	s.Append(ctx, history.NewTrace("b"))

	if n, _ := s.Len(ctx); n != 2 {
		t.Errorf("expected len 2, got %d", n)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if n, _ := s.Len(ctx); n != 0 {
		t.Errorf("expected empty store after clear, got %d", n)
	}
	if _, err := s.Last(ctx); !errors.Is(err, errorspkg.ErrNotFound) {
		t.Errorf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestInMemoryStoreRejectsNilTrace(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.Append(context.Background(), nil); err == nil {
		t.Error("expected error for nil trace")
	}
}
