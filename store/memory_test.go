package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryPutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get before Put: got %v, want ErrNotFound", err)
	}

	rec := Record{Topic: "a/b", Payload: []byte("hello"), Retain: true}
	if err := m.Put(ctx, 1, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := m.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Topic != rec.Topic || string(got.Payload) != string(rec.Payload) || got.Retain != rec.Retain {
		t.Fatalf("got %+v, want %+v", got, rec)
	}

	if err := m.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Delete: got %v, want ErrNotFound", err)
	}

	// Delete is idempotent.
	if err := m.Delete(ctx, 1); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestMemoryClosedRejectsOperations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Put(ctx, 1, Record{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Put after Close: got %v, want ErrClosed", err)
	}
	if _, err := m.Get(ctx, 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("Get after Close: got %v, want ErrClosed", err)
	}
}
