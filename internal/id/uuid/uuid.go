// Package uuid mints run identifiers.
package uuid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewRunID returns a UUIDv7, so run IDs sort by start time.
func NewRunID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate run id: %w", err)
	}
	return id, nil
}

// StartedAt extracts the creation time embedded in a run ID. It fails for IDs
// that do not carry a timestamp.
func StartedAt(id uuid.UUID) (time.Time, error) {
	switch id.Version() {
	case 1, 2, 6, 7:
	default:
		return time.Time{}, fmt.Errorf("run id %s is version %d and carries no timestamp", id, id.Version())
	}
	sec, nsec := id.Time().UnixTime()
	return time.Unix(sec, nsec).UTC(), nil
}
