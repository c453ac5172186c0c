package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-harvester/internal/progress"
)

// LogSink turns progress events into structured log lines: one info line per
// recorded ID and per checkpoint, debug for skips and failures (the driver
// already logs failures with their error).
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.Uint64("id", evt.ItemID),
			zap.Duration("dur", evt.Dur),
		}
		switch evt.Stage {
		case progress.StageRecorded:
			s.logger.Info("recorded item", append(fields, zap.String("name", evt.Note))...)
		case progress.StageTombstone:
			s.logger.Info("recorded tombstone", fields...)
		case progress.StageCheckpoint:
			est := evt.Estimate
			s.logger.Info("progress",
				zap.String("run_id", evt.RunUUID().String()),
				zap.Uint64("cursor", est.Cursor),
				zap.Uint64("total", est.Total),
				zap.Float64("percent", est.Fraction*100),
				zap.Duration("avg_per_id", est.AvgPerID),
				zap.Duration("eta", est.Remaining),
			)
		default:
			s.logger.Debug("progress event", append(fields,
				zap.String("stage", string(evt.Stage)),
				zap.String("note", evt.Note),
			)...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
