package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-harvester/internal/app"
	"github.com/JakeFAU/catalog-harvester/internal/config"
	"github.com/JakeFAU/catalog-harvester/internal/crawler"
)

type missingFetcher struct{ calls int }

func (f *missingFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.calls++
	return crawler.FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Body: []byte("<p>Bad Torrent ID.</p>")}, nil
}

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	chunks := filepath.Join(dir, "chunks")
	body := fmt.Sprintf(`logging:
  development: false
  level: error
catalog:
  base_url: https://catalog.test
crawl:
  floor: 99
  stop_after: 102
  interval: 0s
  flush_every: 1
checkpoint:
  backend: local
  dir: %s
  chunk_size: 10
`, chunks)
	path := filepath.Join(dir, "harvester.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path, chunks
}

func factoryWith(fetcher crawler.Fetcher) appFactory {
	return func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
		return app.New(ctx, cfg, logger, app.Options{Fetcher: fetcher})
	}
}

func execute(t *testing.T, factory appFactory, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(factory)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCrawlThenStats(t *testing.T) {
	cfgPath, chunks := writeConfig(t)
	fetcher := &missingFetcher{}

	_, err := execute(t, factoryWith(fetcher), "crawl", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 3, fetcher.calls)
	assert.FileExists(t, filepath.Join(chunks, "chunk-00000010.json"))

	out, err := execute(t, factoryWith(fetcher), "stats", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "items:       0\n")
	assert.Contains(t, out, "tombstones:  3\n")
	assert.Contains(t, out, "highest id:  102\n")
	assert.Contains(t, out, "next id:     103\n")
	assert.Equal(t, 3, fetcher.calls, "stats must not fetch")
}

func TestCrawlResumesFromCheckpoint(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	first := &missingFetcher{}
	_, err := execute(t, factoryWith(first), "crawl", "--config", cfgPath)
	require.NoError(t, err)

	second := &missingFetcher{}
	_, err = execute(t, factoryWith(second), "crawl", "--config", cfgPath)
	require.NoError(t, err)
	assert.Zero(t, second.calls)
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("checkpoint:\n  backend: floppy\n"), 0o600))

	called := false
	factory := func(context.Context, config.Config, *zap.Logger) (*app.App, error) {
		called = true
		return nil, nil
	}
	_, err := execute(t, factory, "stats", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floppy")
	assert.False(t, called)
}

func TestFactoryErrorIsReported(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	factory := func(context.Context, config.Config, *zap.Logger) (*app.App, error) {
		return nil, assert.AnError
	}
	_, err := execute(t, factory, "crawl", "--config", cfgPath)
	require.ErrorIs(t, err, assert.AnError)
}

func TestExportRequiresDSN(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := execute(t, factoryWith(&missingFetcher{}), "export", "--config", cfgPath)
	require.Error(t, err)
}

func TestDotEnvSuppliesOverrides(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HARVESTER_CRAWL_STOP_AFTER=100\n"), 0o600))
	t.Chdir(dir)
	t.Cleanup(func() { _ = os.Unsetenv("HARVESTER_CRAWL_STOP_AFTER") })

	fetcher := &missingFetcher{}
	_, err := execute(t, factoryWith(fetcher), "crawl", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
}
