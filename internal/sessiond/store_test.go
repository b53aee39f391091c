package sessiond

import (
	"fmt"
	"strings"
	"testing"
)

func TestSessionStoreCreateAndGet(t *testing.T) {
	store := NewSessionStore()
	rec := newTestRecord(t, "sess-1")

	if err := store.Create(rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.CreatedAtUnixMs == 0 {
		t.Fatalf("expected creation timestamp")
	}

	got, ok := store.Get("sess-1")
	if !ok || got.ID != "sess-1" {
		t.Fatalf("Get returned %v, %v", got, ok)
	}
	if _, ok := store.Get("missing"); ok {
		t.Fatalf("expected miss for unknown session")
	}
}

func TestSessionStoreRejectsDuplicates(t *testing.T) {
	store := NewSessionStore()
	if err := store.Create(newTestRecord(t, "sess-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := store.Create(newTestRecord(t, "sess-1"))
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestSessionStoreRejectsEmptyID(t *testing.T) {
	store := NewSessionStore()
	if err := store.Create(newTestRecord(t, "")); err != ErrSessionIDMissing {
		t.Fatalf("expected ErrSessionIDMissing, got %v", err)
	}
}

func TestSessionStoreListOrder(t *testing.T) {
	store := NewSessionStore()
	for i := 0; i < 5; i++ {
		if err := store.Create(newTestRecord(t, fmt.Sprintf("sess-%d", i))); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	records := store.List(0)
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for i, rec := range records {
		if want := fmt.Sprintf("sess-%d", i); rec.ID != want {
			t.Fatalf("records[%d] = %s, want %s", i, rec.ID, want)
		}
	}

	limited := store.List(2)
	if len(limited) != 2 || limited[0].ID != "sess-0" {
		t.Fatalf("limited listing wrong: %v", limited)
	}
}
