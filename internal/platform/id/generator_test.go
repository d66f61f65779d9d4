package id

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDGenerator_NewID(t *testing.T) {
	t.Parallel()

	g := NewUUIDGenerator()
	first, err := g.NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	second, err := g.NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct ids, got %q twice", first)
	}
	parsed, err := uuid.Parse(first)
	if err != nil {
		t.Fatalf("expected uuid, got %q: %v", first, err)
	}
	if parsed.Version() != 4 {
		t.Fatalf("expected v4 uuid, got v%d", parsed.Version())
	}
}

func TestSequence_Exhausts(t *testing.T) {
	t.Parallel()

	seq := NewSequence("evt-1")
	if got, err := seq.NewID(); err != nil || got != "evt-1" {
		t.Fatalf("expected evt-1, got %q err=%v", got, err)
	}
	if _, err := seq.NewID(); err == nil {
		t.Fatalf("expected exhausted sequence error")
	}
}
