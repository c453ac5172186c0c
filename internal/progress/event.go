package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the outcome or milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRecorded   Stage = "RECORDED"
	StageTombstone  Stage = "TOMBSTONE"
	StageFailed     Stage = "FAILED"
	StageSkipped    Stage = "SKIPPED"
	StageCheckpoint Stage = "CHECKPOINT"
)

// Event captures a single step of harvest progress.
type Event struct {
	// RunID identifies one invocation of the crawl driver.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// ItemID is the catalog ID the event refers to; for checkpoints it is the cursor.
	ItemID uint64
	// Dur is the wall time spent on the ID, pacing included.
	Dur time.Duration
	// Note carries the item name on success or the error text on failure.
	Note string
	// Estimate is set on checkpoint events only.
	Estimate *Estimate
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRecorded, StageTombstone, StageFailed, StageSkipped:
	case StageCheckpoint:
		if e.Estimate == nil {
			return errors.New("checkpoint requires an estimate")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
