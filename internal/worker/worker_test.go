package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-harvester/internal/catalog"
	"github.com/JakeFAU/catalog-harvester/internal/checkpoint"
	"github.com/JakeFAU/catalog-harvester/internal/clock"
	"github.com/JakeFAU/catalog-harvester/internal/crawler"
	"github.com/JakeFAU/catalog-harvester/internal/extract"
	"github.com/JakeFAU/catalog-harvester/internal/progress"
	"github.com/JakeFAU/catalog-harvester/internal/storage/memory"
)

func detailURL(id uint64) string {
	return fmt.Sprintf("https://catalog.test/torrent/%d/harvest/", id)
}

type fakeFetcher struct {
	pages    map[string]crawler.FetchResponse
	failures map[string]error
	calls    []string
	onFetch  func(n int)
}

func (f *fakeFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.calls = append(f.calls, req.URL)
	if f.onFetch != nil {
		f.onFetch(len(f.calls))
	}
	if err, ok := f.failures[req.URL]; ok {
		return crawler.FetchResponse{}, err
	}
	if resp, ok := f.pages[req.URL]; ok {
		return resp, nil
	}
	return crawler.FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Body: []byte("item")}, nil
}

// nameExtractor treats "missing" bodies as tombstones and anything else as an
// item named after the body.
type nameExtractor struct{}

func (nameExtractor) Extract(_ context.Context, id uint64, body []byte, now time.Time) (catalog.Record, error) {
	switch string(body) {
	case "missing":
		return catalog.Tombstone(), nil
	case "garbled":
		return catalog.Record{}, fmt.Errorf("%w: layout changed", crawler.ErrStructural)
	}
	return catalog.Found(catalog.Item{Name: fmt.Sprintf("%s-%d", body, id), ScrapedAt: catalog.TimestampOf(now)}), nil
}

func (nameExtractor) NotFound(body []byte) bool {
	return string(body) == "missing"
}

type countingPacer struct{ waits int }

func (p *countingPacer) Wait(context.Context, string) error {
	p.waits++
	return nil
}

type eventLog struct{ events []progress.Event }

func (e *eventLog) Emit(_ context.Context, evt progress.Event) { e.events = append(e.events, evt) }

func (e *eventLog) stages() []progress.Stage {
	out := make([]progress.Stage, 0, len(e.events))
	for _, evt := range e.events {
		out = append(out, evt.Stage)
	}
	return out
}

type harness struct {
	backend *memory.ChunkStore
	store   *checkpoint.Store
	fetcher *fakeFetcher
	pacer   *countingPacer
	events  *eventLog
	hooks   int
}

func newHarness(t *testing.T, backend *memory.ChunkStore) *harness {
	t.Helper()
	if backend == nil {
		backend = memory.NewChunkStore()
	}
	store, err := checkpoint.New(backend, 10, nil, nil)
	require.NoError(t, err)
	return &harness{
		backend: backend,
		store:   store,
		fetcher: &fakeFetcher{pages: map[string]crawler.FetchResponse{}, failures: map[string]error{}},
		pacer:   &countingPacer{},
		events:  &eventLog{},
	}
}

func (h *harness) worker(t *testing.T, cfg Config) *Worker {
	t.Helper()
	if cfg.DetailURL == nil {
		cfg.DetailURL = detailURL
	}
	w, err := New(cfg, Deps{
		Store:     h.store,
		Fetcher:   h.fetcher,
		Extractor: nameExtractor{},
		Pacer:     h.pacer,
		Clock:     clock.NewFixed(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		Progress:  h.events,
		Estimator: progress.NewEstimator(1000),
		OnCheckpoint: func(context.Context) error {
			h.hooks++
			return nil
		},
	})
	require.NoError(t, err)
	return w
}

func (h *harness) page(id uint64, status int, body string) {
	h.fetcher.pages[detailURL(id)] = crawler.FetchResponse{URL: detailURL(id), StatusCode: status, Body: []byte(body)}
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(Config{DetailURL: detailURL}, Deps{})
	require.Error(t, err)

	h := newHarness(t, nil)
	_, err = New(Config{}, Deps{Store: h.store, Fetcher: h.fetcher, Extractor: nameExtractor{}, Clock: clock.New()})
	require.Error(t, err)
}

func TestRunRecordsOutcomes(t *testing.T) {
	h := newHarness(t, nil)
	h.page(101, http.StatusOK, "missing")
	h.page(102, http.StatusServiceUnavailable, "busy")
	h.page(103, http.StatusOK, "garbled")
	h.fetcher.failures[detailURL(104)] = errors.New("connection reset")

	require.NoError(t, h.worker(t, Config{Floor: 99, StopAfter: 105}).Run(context.Background()))

	assert.Len(t, h.fetcher.calls, 6)
	assert.Equal(t, detailURL(100), h.fetcher.calls[0])
	assert.Equal(t, 6, h.pacer.waits)
	assert.Equal(t, []progress.Stage{
		progress.StageRecorded,
		progress.StageTombstone,
		progress.StageFailed,
		progress.StageFailed,
		progress.StageFailed,
		progress.StageRecorded,
	}, h.events.stages())
	assert.Contains(t, h.events.events[2].Note, "503")

	reloaded, err := checkpoint.New(h.backend, 10, nil, nil)
	require.NoError(t, err)
	for id, want := range map[uint64]bool{100: true, 101: true, 102: false, 103: false, 104: false, 105: true, 106: false} {
		got, err := reloaded.Contains(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, want, got, "id %d", id)
	}

	rec, ok, err := reloaded.Get(context.Background(), 105)
	require.NoError(t, err)
	require.True(t, ok)
	item, found := rec.Item()
	require.True(t, found)
	assert.Equal(t, "item-105", item.Name)
}

func TestRunResumesAndSkipsRecordedIDs(t *testing.T) {
	h := newHarness(t, nil)
	h.page(101, http.StatusInternalServerError, "")
	require.NoError(t, h.worker(t, Config{Floor: 99, StopAfter: 102}).Run(context.Background()))
	require.Len(t, h.fetcher.calls, 3)

	second := newHarness(t, h.backend)
	require.NoError(t, second.worker(t, Config{Floor: 99, StopAfter: 103}).Run(context.Background()))

	assert.Equal(t, []string{detailURL(101), detailURL(103)}, second.fetcher.calls)
	assert.Equal(t, 2, second.pacer.waits)
	assert.Equal(t, []progress.Stage{
		progress.StageSkipped,
		progress.StageRecorded,
		progress.StageSkipped,
		progress.StageRecorded,
	}, second.events.stages())
}

func TestRunCheckpointsAtCadence(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.worker(t, Config{Floor: 0, StopAfter: 5, FlushEvery: 2}).Run(context.Background()))

	var checkpoints []progress.Event
	for _, evt := range h.events.events {
		if evt.Stage == progress.StageCheckpoint {
			checkpoints = append(checkpoints, evt)
		}
	}
	require.Len(t, checkpoints, 2)
	assert.Equal(t, uint64(2), checkpoints[0].ItemID)
	require.NotNil(t, checkpoints[1].Estimate)
	assert.Equal(t, uint64(4), checkpoints[1].Estimate.Cursor)
	assert.InDelta(t, 0.004, checkpoints[1].Estimate.Fraction, 1e-9)
	assert.Equal(t, 2, h.hooks)

	// Two cadence flushes plus the final flush on exit.
	assert.Equal(t, 3, h.backend.Puts())
}

func TestRunStopsOnCancellation(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.fetcher.onFetch = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	require.NoError(t, h.worker(t, Config{Floor: 99}).Run(ctx))
	assert.Len(t, h.fetcher.calls, 3)

	names, err := h.backend.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{checkpoint.ChunkName(10)}, names)
}

type brokenBackend struct{ *memory.ChunkStore }

func (brokenBackend) Put(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestRunAbortsOnStorageError(t *testing.T) {
	backend := brokenBackend{memory.NewChunkStore()}
	store, err := checkpoint.New(backend, 10, nil, nil)
	require.NoError(t, err)

	fetcher := &fakeFetcher{}
	w, err := New(Config{Floor: 5, FlushEvery: 100, DetailURL: detailURL}, Deps{
		Store:     store,
		Fetcher:   fetcher,
		Extractor: nameExtractor{},
		Clock:     clock.New(),
	})
	require.NoError(t, err)

	err = w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	// IDs 6..9 fit in chunk 0; the lookup for ID 10 forces the failing flush
	// before anything is fetched for it.
	assert.Len(t, fetcher.calls, 4)
}

func TestTombstonePageSkipsCommentFeed(t *testing.T) {
	backend := memory.NewChunkStore()
	store, err := checkpoint.New(backend, 1000, nil, nil)
	require.NoError(t, err)

	feed := &countingFeed{}
	extractor, err := extract.New(extract.Config{NotFoundMarkers: []string{"Bad Torrent ID."}}, feed, nil, nil)
	require.NoError(t, err)

	fetcher := &fakeFetcher{pages: map[string]crawler.FetchResponse{
		detailURL(100): {StatusCode: http.StatusOK, Body: []byte("<html><body><p>Bad Torrent ID.</p></body></html>")},
	}}
	w, err := New(Config{Floor: 99, StopAfter: 100, DetailURL: detailURL}, Deps{
		Store:     store,
		Fetcher:   fetcher,
		Extractor: extractor,
		Clock:     clock.New(),
	})
	require.NoError(t, err)
	require.NoError(t, w.Run(context.Background()))

	assert.Zero(t, feed.calls)
	data, err := backend.Get(context.Background(), checkpoint.ChunkName(0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"100":null}`, string(data))
	assert.False(t, strings.Contains(strings.Join(fetcher.calls, ","), "comments"))
}

func TestNotFoundStatusWithMarkerIsTombstone(t *testing.T) {
	backend := memory.NewChunkStore()
	store, err := checkpoint.New(backend, 1000, nil, nil)
	require.NoError(t, err)

	extractor, err := extract.New(extract.Config{NotFoundMarkers: []string{"Bad Torrent ID."}}, &countingFeed{}, nil, nil)
	require.NoError(t, err)

	fetcher := &fakeFetcher{pages: map[string]crawler.FetchResponse{
		detailURL(100): {StatusCode: http.StatusNotFound, Body: []byte("<p>Bad Torrent ID.</p>")},
		detailURL(101): {StatusCode: http.StatusNotFound, Body: []byte("<p>Not Found</p>")},
	}}
	events := &eventLog{}
	w, err := New(Config{Floor: 99, StopAfter: 101, DetailURL: detailURL}, Deps{
		Store:     store,
		Fetcher:   fetcher,
		Extractor: extractor,
		Clock:     clock.New(),
		Progress:  events,
	})
	require.NoError(t, err)
	require.NoError(t, w.Run(context.Background()))

	recorded, err := store.Contains(context.Background(), 100)
	require.NoError(t, err)
	assert.True(t, recorded)
	recorded, err = store.Contains(context.Background(), 101)
	require.NoError(t, err)
	assert.False(t, recorded)
	assert.Equal(t, []progress.Stage{progress.StageTombstone, progress.StageFailed}, events.stages())
	assert.Contains(t, events.events[1].Note, "404")
}

type countingFeed struct{ calls int }

func (f *countingFeed) Comments(context.Context, uint64) ([]extract.RawComment, error) {
	f.calls++
	return nil, nil
}
