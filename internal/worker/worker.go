// Package worker implements the crawl driver: a single sequential loop that
// walks the catalog ID space, skips IDs already checkpointed, and records an
// item or tombstone for every other ID it can harvest.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-harvester/internal/catalog"
	"github.com/JakeFAU/catalog-harvester/internal/crawler"
	"github.com/JakeFAU/catalog-harvester/internal/progress"
)

const defaultFlushEvery = 60

// Store is the subset of the checkpoint store the driver needs.
type Store interface {
	Contains(ctx context.Context, id uint64) (bool, error)
	Put(ctx context.Context, id uint64, rec catalog.Record) error
	Flush(ctx context.Context) error
}

// Extractor converts a fetched detail page into a record.
type Extractor interface {
	Extract(ctx context.Context, id uint64, body []byte, now time.Time) (catalog.Record, error)
	// NotFound reports an embedded not-found marker, which turns a non-200
	// response into a tombstone.
	NotFound(body []byte) bool
}

// Config controls Worker behavior.
type Config struct {
	// Floor is the highest ID never requested.
	Floor uint64
	// StopAfter is the last ID to visit. Zero runs until cancelled.
	StopAfter uint64
	// FlushEvery is the number of IDs between forced checkpoints.
	FlushEvery int
	// DetailURL builds the detail page URL for an ID.
	DetailURL func(id uint64) string
}

// Deps bundles the collaborators of a Worker.
type Deps struct {
	Store     Store
	Fetcher   crawler.Fetcher
	Extractor Extractor
	Pacer     crawler.Pacer
	Clock     crawler.Clock
	Observer  crawler.Observer
	Progress  progress.Emitter
	Estimator *progress.Estimator
	// OnCheckpoint runs after every forced flush. Its error is logged only.
	OnCheckpoint func(ctx context.Context) error
	Logger       *zap.Logger
}

// Worker drives the harvest loop.
type Worker struct {
	cfg  Config
	deps Deps
}

// New constructs a Worker.
func New(cfg Config, deps Deps) (*Worker, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("worker requires a store")
	case deps.Fetcher == nil:
		return nil, errors.New("worker requires a fetcher")
	case deps.Extractor == nil:
		return nil, errors.New("worker requires an extractor")
	case deps.Clock == nil:
		return nil, errors.New("worker requires a clock")
	case cfg.DetailURL == nil:
		return nil, errors.New("worker requires a detail url builder")
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = defaultFlushEvery
	}
	if deps.Observer == nil {
		deps.Observer = crawler.NopObserver{}
	}
	if deps.Estimator == nil {
		deps.Estimator = progress.NewEstimator(0)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Worker{cfg: cfg, deps: deps}, nil
}

// Run walks IDs from Floor+1 upwards until ctx is cancelled or StopAfter is
// passed. Harvest failures leave the ID unrecorded for a future run; storage
// failures stop the loop and are returned. The resident chunk is flushed on
// every exit path.
func (w *Worker) Run(ctx context.Context) (err error) {
	// Store calls must not be cut short by cancellation, or a shutdown would
	// look like a storage failure and lose the tail of the run.
	storeCtx := context.WithoutCancel(ctx)
	defer func() {
		if ferr := w.deps.Store.Flush(storeCtx); ferr != nil && err == nil {
			err = fmt.Errorf("final flush: %w", ferr)
		}
	}()

	log := w.deps.Logger
	log.Info("harvest starting",
		zap.Uint64("floor", w.cfg.Floor),
		zap.Uint64("stop_after", w.cfg.StopAfter),
		zap.Int("flush_every", w.cfg.FlushEvery),
	)

	var visited int
	for id := w.cfg.Floor + 1; w.cfg.StopAfter == 0 || id <= w.cfg.StopAfter; id++ {
		if ctx.Err() != nil {
			log.Info("harvest stopping", zap.Uint64("cursor", id-1))
			return nil
		}
		evt, err := w.step(ctx, storeCtx, id)
		if err != nil {
			return err
		}
		w.emit(ctx, evt)

		visited++
		if visited%w.cfg.FlushEvery == 0 {
			if err := w.checkpoint(ctx, storeCtx, id); err != nil {
				return err
			}
		}
	}
	log.Info("harvest reached stop id", zap.Uint64("stop_after", w.cfg.StopAfter))
	return nil
}

// step processes a single ID. Only storage errors are returned.
func (w *Worker) step(ctx, storeCtx context.Context, id uint64) (progress.Event, error) {
	evt := progress.Event{ItemID: id}
	contained, err := w.deps.Store.Contains(storeCtx, id)
	if err != nil {
		return evt, fmt.Errorf("checkpoint lookup %d: %w", id, err)
	}
	if contained {
		evt.Stage = progress.StageSkipped
		return evt, nil
	}

	start := w.deps.Clock.Now()
	rec, err := w.harvest(ctx, id)
	evt.Dur = w.deps.Clock.Now().Sub(start)
	w.deps.Estimator.Observe(evt.Dur)
	if err != nil {
		evt.Stage = progress.StageFailed
		evt.Note = err.Error()
		if ctx.Err() == nil {
			w.deps.Logger.Error("harvest failed", zap.Uint64("id", id), zap.Error(err))
		}
		return evt, nil
	}

	if err := w.deps.Store.Put(storeCtx, id, rec); err != nil {
		return evt, fmt.Errorf("record %d: %w", id, err)
	}
	if item, ok := rec.Item(); ok {
		evt.Stage = progress.StageRecorded
		evt.Note = item.Name
	} else {
		evt.Stage = progress.StageTombstone
	}
	return evt, nil
}

func (w *Worker) harvest(ctx context.Context, id uint64) (catalog.Record, error) {
	url := w.cfg.DetailURL(id)
	if w.deps.Pacer != nil {
		if err := w.deps.Pacer.Wait(ctx, url); err != nil {
			return catalog.Record{}, err
		}
	}

	start := w.deps.Clock.Now()
	resp, err := w.deps.Fetcher.Fetch(ctx, crawler.FetchRequest{URL: url, Kind: crawler.FetchDetail})
	if err != nil {
		w.deps.Observer.ObserveFetch(crawler.FetchDetail, 0, w.deps.Clock.Now().Sub(start))
		return catalog.Record{}, fmt.Errorf("fetch detail: %w", err)
	}
	w.deps.Observer.ObserveFetch(crawler.FetchDetail, resp.StatusCode, resp.Duration)
	if !resp.OK() {
		if w.deps.Extractor.NotFound(resp.Body) {
			return catalog.Tombstone(), nil
		}
		return catalog.Record{}, fmt.Errorf("%w: %d", crawler.ErrUnexpectedStatus, resp.StatusCode)
	}

	rec, err := w.deps.Extractor.Extract(ctx, id, resp.Body, w.deps.Clock.Now())
	if err != nil {
		return catalog.Record{}, fmt.Errorf("extract: %w", err)
	}
	return rec, nil
}

func (w *Worker) checkpoint(ctx, storeCtx context.Context, cursor uint64) error {
	if err := w.deps.Store.Flush(storeCtx); err != nil {
		return fmt.Errorf("checkpoint at %d: %w", cursor, err)
	}
	est := w.deps.Estimator.Estimate(cursor)
	w.emit(ctx, progress.Event{Stage: progress.StageCheckpoint, ItemID: cursor, Estimate: &est})
	if w.deps.OnCheckpoint != nil {
		if err := w.deps.OnCheckpoint(storeCtx); err != nil {
			w.deps.Logger.Warn("checkpoint hook failed", zap.Error(err))
		}
	}
	return nil
}

func (w *Worker) emit(ctx context.Context, evt progress.Event) {
	if w.deps.Progress == nil {
		return
	}
	if evt.TS.IsZero() {
		evt.TS = w.deps.Clock.Now()
	}
	w.deps.Progress.Emit(ctx, evt)
}
