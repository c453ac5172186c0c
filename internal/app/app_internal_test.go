package app

import (
	"context"
	"testing"

	gcstorage "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/catalog-harvester/internal/config"
)

// Not parallel: replaces the package-level GCS client constructor.
func TestNewReleasesGCSClientOnFailure(t *testing.T) {
	closed := 0
	orig := newGCSClient
	newGCSClient = func(ctx context.Context) (*gcstorage.Client, func() error, error) {
		client, err := gcstorage.NewClient(ctx, option.WithoutAuthentication(), option.WithEndpoint("http://127.0.0.1:1/storage/v1/"))
		if err != nil {
			return nil, nil, err
		}
		return client, func() error {
			closed++
			return client.Close()
		}, nil
	}
	t.Cleanup(func() { newGCSClient = orig })

	base, err := config.Load("")
	require.NoError(t, err)
	base.Checkpoint.Backend = config.BackendGCS
	base.Checkpoint.GCSBucket = "harvest"

	tests := map[string]func(*config.Config){
		"backend rejects config":    func(c *config.Config) { c.Checkpoint.GCSBucket = "" },
		"checkpoint rejects config": func(c *config.Config) { c.Checkpoint.ChunkSize = 0 },
	}
	for name, mutate := range tests {
		closed = 0
		cfg := base
		mutate(&cfg)
		_, err := New(context.Background(), cfg, nil, Options{})
		require.Error(t, err, name)
		assert.Equal(t, 1, closed, name)
	}
}

func TestCloseRunsClosersOnce(t *testing.T) {
	calls := 0
	a := &App{closers: []func() error{func() error { calls++; return nil }}}
	require.NoError(t, a.runClosers())
	require.NoError(t, a.runClosers())
	assert.Equal(t, 1, calls)
}
