package sinks

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/JakeFAU/catalog-harvester/internal/progress"
)

// BarSink renders catalog coverage as a terminal progress bar. The bar tracks
// the highest ID visited against the configured catalog size.
type BarSink struct {
	out        io.Writer
	bar        *progressbar.ProgressBar
	total      int64
	cursor     int64
	recorded   int
	tombstones int
	failed     int
}

// NewBarSink draws onto out, normally stderr.
func NewBarSink(out io.Writer, total uint64) *BarSink {
	limit := int64(total)
	if limit <= 0 {
		limit = -1 // spinner
	}
	return &BarSink{
		out:   out,
		total: limit,
		bar: progressbar.NewOptions64(limit,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("harvest"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("ids"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		),
	}
}

// Consume advances the bar to the latest ID and refreshes the outcome tally.
func (s *BarSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRecorded:
			s.recorded++
		case progress.StageTombstone:
			s.tombstones++
		case progress.StageFailed:
			s.failed++
		}
		if id := int64(evt.ItemID); id > s.cursor {
			s.cursor = id
		}
	}
	s.bar.Describe(fmt.Sprintf("harvest ok=%d gone=%d err=%d", s.recorded, s.tombstones, s.failed))
	value := s.cursor
	if s.total > 0 && value > s.total {
		value = s.total
	}
	if err := s.bar.Set64(value); err != nil {
		return fmt.Errorf("render progress bar: %w", err)
	}
	return nil
}

// Cursor reports the highest ID the bar has seen.
func (s *BarSink) Cursor() uint64 {
	return uint64(s.cursor)
}

// Close leaves the bar where it stopped and moves the terminal to a new line.
func (s *BarSink) Close(context.Context) error {
	_, err := fmt.Fprintln(s.out)
	return err
}
