package storage

import (
	"context"
	"errors"
	"testing"
)

func TestNewStoreMemory(t *testing.T) {
	store, err := NewStore("memory", "")
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	if store == nil {
		t.Fatal("expected non-nil store")
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close memory store: %v", err)
	}
}

func TestNewStorePostgresIsLazy(t *testing.T) {
	store, err := NewStore("postgres", "")
	if err != nil {
		t.Fatalf("new postgres store: %v", err)
	}
	if _, _, err := store.GetRun(context.Background(), "r"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized before Init, got %v", err)
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close uninitialized store: %v", err)
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("unknown", "")
	if err == nil {
		t.Fatal("expected unsupported store error")
	}
}

func TestRebindNumbered(t *testing.T) {
	got := rebindNumbered(`SELECT payload FROM runs WHERE id = ? AND created_at_utc > ?`)
	want := `SELECT payload FROM runs WHERE id = $1 AND created_at_utc > $2`
	if got != want {
		t.Fatalf("rebind: got=%q want=%q", got, want)
	}
}
