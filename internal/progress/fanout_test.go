package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubSink struct {
	batches  [][]Event
	err      error
	closeErr error
	closed   bool
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return s.err
}

func (s *stubSink) Close(context.Context) error {
	s.closed = true
	return s.closeErr
}

func TestFanoutDeliversSynchronously(t *testing.T) {
	t.Parallel()

	runID := UUIDToBytes(uuid.New())
	first, second := &stubSink{}, &stubSink{}
	f := NewFanout(runID, nil, first, second)

	f.Emit(context.Background(), Event{Stage: StageRecorded, ItemID: 100, Note: "Example"})
	f.Emit(context.Background(), Event{Stage: StageTombstone, ItemID: 101})

	for _, sink := range []*stubSink{first, second} {
		require.Len(t, sink.batches, 2)
		evt := sink.batches[0][0]
		assert.Equal(t, runID, evt.RunID)
		assert.False(t, evt.TS.IsZero())
		assert.Equal(t, uint64(100), evt.ItemID)
		assert.Equal(t, StageTombstone, sink.batches[1][0].Stage)
	}
	assert.Equal(t, runID, f.RunID())
}

func TestFanoutDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	f := NewFanout(UUIDToBytes(uuid.New()), nil, sink)
	f.Emit(context.Background(), Event{Stage: "BOGUS"})
	f.Emit(context.Background(), Event{Stage: StageCheckpoint})
	f.Emit(context.Background(), Event{Stage: StageSkipped, Dur: -time.Second})
	assert.Empty(t, sink.batches)
}

func TestFanoutLogsSinkErrors(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	failing, healthy := &stubSink{err: errors.New("boom")}, &stubSink{}
	f := NewFanout(UUIDToBytes(uuid.New()), zap.New(core), failing, healthy)

	f.Emit(context.Background(), Event{Stage: StageFailed, ItemID: 5, Note: "timeout"})
	assert.Len(t, healthy.batches, 1)
	assert.Equal(t, 1, logs.FilterMessage("progress sink failed").Len())
}

func TestFanoutCloseJoinsErrors(t *testing.T) {
	t.Parallel()

	bad := &stubSink{closeErr: errors.New("close failed")}
	good := &stubSink{}
	f := NewFanout(UUIDToBytes(uuid.New()), nil, bad, good)
	err := f.Close(context.Background())
	require.Error(t, err)
	assert.True(t, bad.closed)
	assert.True(t, good.closed)

	var nilFanout *Fanout
	nilFanout.Emit(context.Background(), Event{})
	require.NoError(t, nilFanout.Close(context.Background()))
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	runID := UUIDToBytes(uuid.New())
	now := time.Now()
	require.NoError(t, Event{RunID: runID, TS: now, Stage: StageSkipped}.Validate())
	require.NoError(t, Event{RunID: runID, TS: now, Stage: StageCheckpoint, Estimate: &Estimate{}}.Validate())
	require.Error(t, Event{TS: now, Stage: StageSkipped}.Validate())
	require.Error(t, Event{RunID: runID, Stage: StageSkipped}.Validate())

	evt := Event{RunID: runID}
	assert.Equal(t, uuid.UUID(runID), evt.RunUUID())
}
