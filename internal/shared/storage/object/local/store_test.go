package local

import (
	"context"
	"errors"
	"testing"

	"costopt-backend/internal/shared/storage/object"
)

func TestPutGetRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	if err := store.Put(context.Background(), "analyses/a-1/state.json", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := store.Get(context.Background(), "analyses/a-1/state.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Fatalf("unexpected data: %s", data)
	}
}

func TestGetMissing(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Get(context.Background(), "nope.json"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	store := New(t.TempDir())
	if err := store.Put(context.Background(), "../escape.json", []byte("x")); err == nil {
		t.Fatalf("expected error for traversal key")
	}
	if err := store.Put(context.Background(), "/abs.json", []byte("x")); err == nil {
		t.Fatalf("expected error for absolute key")
	}
}
