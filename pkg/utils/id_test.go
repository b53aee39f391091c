package utils

import (
	"strings"
	"testing"
)

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateID()
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestGenerateSessionID(t *testing.T) {
	id := GenerateSessionID()
	if !strings.HasPrefix(id, "sess-") {
		t.Fatalf("expected sess- prefix, got %s", id)
	}

	other := GenerateSessionID()
	if id == other {
		t.Fatalf("expected distinct session IDs, got %s twice", id)
	}
}

func TestGenerateArtifactID(t *testing.T) {
	id := GenerateArtifactID("fuse", 3)
	if !strings.HasPrefix(id, "fuse-3-") {
		t.Fatalf("expected fuse-3- prefix, got %s", id)
	}
}
