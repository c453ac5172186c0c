package progress

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Fanout delivers each event to every sink before Emit returns. It starts no
// goroutines, so event order matches call order.
type Fanout struct {
	runID  [16]byte
	sinks  []Sink
	now    func() time.Time
	logger *zap.Logger
}

// NewFanout builds a Fanout that stamps events with runID.
func NewFanout(runID [16]byte, logger *zap.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{
		runID:  runID,
		sinks:  append([]Sink(nil), sinks...),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// RunID returns the identifier stamped on every event.
func (f *Fanout) RunID() [16]byte {
	return f.runID
}

// Emit fills in the run ID and timestamp when missing and hands the event to
// each sink. Sink failures are logged and never reach the caller.
func (f *Fanout) Emit(ctx context.Context, evt Event) {
	if f == nil {
		return
	}
	if evt.RunID == [16]byte{} {
		evt.RunID = f.runID
	}
	if evt.TS.IsZero() {
		evt.TS = f.now()
	}
	if err := evt.Validate(); err != nil {
		f.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	batch := []Event{evt}
	for _, sink := range f.sinks {
		if err := sink.Consume(ctx, batch); err != nil {
			f.logger.Warn("progress sink failed", zap.Error(err))
		}
	}
}

// Close closes every sink and joins their errors.
func (f *Fanout) Close(ctx context.Context) error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
