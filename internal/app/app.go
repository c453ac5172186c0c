// Package app builds the long-lived harvester services from configuration and
// holds them for the lifetime of a command, acting as a small dependency
// injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-harvester/internal/catalog"
	"github.com/JakeFAU/catalog-harvester/internal/checkpoint"
	"github.com/JakeFAU/catalog-harvester/internal/clock"
	"github.com/JakeFAU/catalog-harvester/internal/config"
	"github.com/JakeFAU/catalog-harvester/internal/crawler"
	"github.com/JakeFAU/catalog-harvester/internal/extract"
	collyfetcher "github.com/JakeFAU/catalog-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/catalog-harvester/internal/id/uuid"
	"github.com/JakeFAU/catalog-harvester/internal/metrics"
	"github.com/JakeFAU/catalog-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/catalog-harvester/internal/progress"
	"github.com/JakeFAU/catalog-harvester/internal/progress/sinks"
	"github.com/JakeFAU/catalog-harvester/internal/storage/gcs"
	"github.com/JakeFAU/catalog-harvester/internal/storage/local"
	"github.com/JakeFAU/catalog-harvester/internal/storage/memory"
	"github.com/JakeFAU/catalog-harvester/internal/worker"
)

// App holds the services shared by the harvester commands.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	backend  crawler.ChunkStore
	store    *checkpoint.Store
	progress *progress.Fanout
	worker   *worker.Worker
	closers  []func() error
}

// Options overrides collaborators that are normally built from config.
type Options struct {
	// Backend replaces the configured chunk backend.
	Backend crawler.ChunkStore
	// Fetcher replaces the colly transport.
	Fetcher crawler.Fetcher
	// Clock replaces the system clock.
	Clock crawler.Clock
}

// New wires every service from cfg. It fails fast when any collaborator
// cannot be built.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			if cerr := a.runClosers(); cerr != nil {
				logger.Warn("release after failed startup", zap.Error(cerr))
			}
		}
	}()

	collectors, err := metrics.New(a.registry)
	if err != nil {
		return nil, err
	}

	a.backend = opts.Backend
	if a.backend == nil {
		if a.backend, err = a.newBackend(ctx); err != nil {
			return nil, err
		}
	}

	a.store, err = checkpoint.New(a.backend, cfg.Checkpoint.ChunkSize, collectors, logger.Named("checkpoint"))
	if err != nil {
		return nil, err
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:     cfg.HTTP.UserAgent,
			RespectRobots: cfg.HTTP.RespectRobots,
			Timeout:       cfg.RequestTimeout(),
			Logger:        logger.Named("fetcher"),
		})
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	feed := extract.NewHTTPCommentFeed(fetcher, cfg.Catalog.CommentsURL, collectors)
	extractor, err := extract.New(extract.Config{NotFoundMarkers: cfg.Extract.NotFoundMarkers}, feed, collectors, logger.Named("extract"))
	if err != nil {
		return nil, err
	}

	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return nil, err
	}
	runID, err := uuid.NewRunID()
	if err != nil {
		return nil, err
	}
	progressSinks := []progress.Sink{sinks.NewLogSink(logger.Named("progress")), promSink}
	if cfg.Progress.Bar {
		progressSinks = append(progressSinks, sinks.NewBarSink(os.Stderr, cfg.Catalog.TotalItems))
	}
	a.progress = progress.NewFanout(progress.UUIDToBytes(runID), logger, progressSinks...)

	a.worker, err = worker.New(worker.Config{
		Floor:      cfg.Crawl.Floor,
		StopAfter:  cfg.Crawl.StopAfter,
		FlushEvery: cfg.Crawl.FlushEvery,
		DetailURL:  cfg.Catalog.DetailURL,
	}, worker.Deps{
		Store:     a.store,
		Fetcher:   fetcher,
		Extractor: extractor,
		Pacer:     ratelimit.New(ratelimit.Config{Interval: cfg.Crawl.Interval}, collectors),
		Clock:     clk,
		Observer:  collectors,
		Progress:  a.progress,
		Estimator: progress.NewEstimator(cfg.Catalog.TotalItems),
		OnCheckpoint: func(context.Context) error {
			return metrics.WriteTextfile(cfg.Metrics.Textfile, a.registry)
		},
		Logger: logger.Named("worker").With(zap.String("run_id", runID.String())),
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newGCSClient is replaced in tests.
var newGCSClient = func(ctx context.Context) (*gcstorage.Client, func() error, error) {
	client, err := gcstorage.NewClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

func (a *App) newBackend(ctx context.Context) (crawler.ChunkStore, error) {
	cp := a.cfg.Checkpoint
	switch cp.Backend {
	case config.BackendLocal:
		a.logger.Info("using local chunk backend", zap.String("dir", cp.Dir))
		return local.New(local.Config{BaseDir: cp.Dir})
	case config.BackendGCS:
		a.logger.Info("using gcs chunk backend", zap.String("bucket", cp.GCSBucket), zap.String("prefix", cp.Prefix))
		client, closeClient, err := newGCSClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, closeClient)
		return gcs.New(client, gcs.Config{Bucket: cp.GCSBucket, Prefix: cp.Prefix})
	case config.BackendMemory:
		a.logger.Warn("using in-memory chunk backend; nothing will survive the process")
		return memory.NewChunkStore(), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cp.Backend)
	}
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Registry returns the Prometheus registry holding every harvester collector.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Store returns the checkpoint store.
func (a *App) Store() *checkpoint.Store {
	return a.store
}

// Crawl runs the crawl driver until ctx is cancelled, the stop ID is passed,
// or a storage error occurs.
func (a *App) Crawl(ctx context.Context) error {
	err := a.worker.Run(ctx)
	if werr := metrics.WriteTextfile(a.cfg.Metrics.Textfile, a.registry); werr != nil {
		a.logger.Warn("final metrics write failed", zap.Error(werr))
	}
	return err
}

// Stats summarizes the persisted checkpoint.
type Stats struct {
	Items      uint64
	Tombstones uint64
	Highest    uint64
	// NextID is the first ID above the floor that has not been recorded; the
	// next crawl resumes there.
	NextID uint64
}

// Stats walks every persisted chunk.
func (a *App) Stats(ctx context.Context) (Stats, error) {
	st := Stats{NextID: a.cfg.Crawl.Floor + 1}
	contiguous := true
	err := a.store.ForEach(ctx, func(id uint64, rec catalog.Record) error {
		if rec.IsTombstone() {
			st.Tombstones++
		} else {
			st.Items++
		}
		if id > st.Highest {
			st.Highest = id
		}
		switch {
		case id < st.NextID:
		case contiguous && id == st.NextID:
			st.NextID++
		default:
			contiguous = false
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("scan checkpoint: %w", err)
	}
	return st, nil
}

// Exporter receives every recorded ID during an export.
type Exporter interface {
	EnsureTable(ctx context.Context) error
	UpsertRecord(ctx context.Context, id uint64, rec catalog.Record) error
}

// Export streams every persisted record into exp and returns the number written.
func (a *App) Export(ctx context.Context, exp Exporter) (int, error) {
	if err := exp.EnsureTable(ctx); err != nil {
		return 0, err
	}
	var written int
	err := a.store.ForEach(ctx, func(id uint64, rec catalog.Record) error {
		if err := exp.UpsertRecord(ctx, id, rec); err != nil {
			return err
		}
		written++
		if written%10000 == 0 {
			a.logger.Info("export progress", zap.Int("written", written), zap.Uint64("id", id))
		}
		return nil
	})
	if err != nil {
		return written, fmt.Errorf("export: %w", err)
	}
	return written, nil
}

// Close flushes the checkpoint and releases every service in reverse order of
// construction.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close checkpoint: %w", err))
		}
	}
	if err := a.progress.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close progress: %w", err))
	}
	if err := a.runClosers(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// runClosers releases external clients in reverse order of construction. Each
// closer runs at most once.
func (a *App) runClosers() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
