package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-harvester/internal/crawler"
)

func TestChunkStorePutGetList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewChunkStore()

	_, err := store.Get(ctx, "a")
	require.ErrorIs(t, err, crawler.ErrChunkNotFound)

	payload := []byte("hello")
	require.NoError(t, store.Put(ctx, "b", payload))
	require.NoError(t, store.Put(ctx, "a", []byte("world")))
	payload[0] = 'j'

	got, err := store.Get(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, "hello", string(got), "store must keep its own copy")

	names, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, names)
	require.Equal(t, 2, store.Puts())
}
