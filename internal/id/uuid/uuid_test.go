// Package uuid includes tests for run ID generation.
package uuid

import (
	"testing"
	"time"

	goUUID "github.com/google/uuid"
)

// TestNewRunID ensures generated IDs are unique, version 7 and time ordered.
func TestNewRunID(t *testing.T) {
	t.Parallel()

	id1, err := NewRunID()
	if err != nil {
		t.Fatalf("NewRunID() error = %v", err)
	}
	id2, err := NewRunID()
	if err != nil {
		t.Fatalf("NewRunID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	if id1.Version() != 7 {
		t.Fatalf("version = %d, want 7", id1.Version())
	}
	if id1.String() >= id2.String() {
		t.Fatalf("expected %s to sort before %s", id1, id2)
	}
}

// TestStartedAt recovers the embedded timestamp.
func TestStartedAt(t *testing.T) {
	t.Parallel()

	before := time.Now().Add(-time.Second)
	id, err := NewRunID()
	if err != nil {
		t.Fatalf("NewRunID() error = %v", err)
	}
	started, err := StartedAt(id)
	if err != nil {
		t.Fatalf("StartedAt() error = %v", err)
	}
	if started.Before(before) || started.After(time.Now().Add(time.Second)) {
		t.Fatalf("StartedAt() = %v, want close to now", started)
	}

	if _, err := StartedAt(goUUID.New()); err == nil {
		t.Fatal("expected v4 ID to be rejected")
	}
}
