package embedding

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.brainbox/internal/vectordb"
)

type countingProvider struct {
	inner  Provider
	dense  atomic.Int64
	sparse atomic.Int64
}

func (c *countingProvider) Dimension() int { return c.inner.Dimension() }

func (c *countingProvider) EmbedDense(ctx context.Context, text string) ([]float32, error) {
	c.dense.Add(1)
	return c.inner.EmbedDense(ctx, text)
}

func (c *countingProvider) EmbedSparse(ctx context.Context, text string) (vectordb.SparseVector, error) {
	c.sparse.Add(1)
	return c.inner.EmbedSparse(ctx, text)
}

func newCachedProvider(t *testing.T) (*CachedProvider, *countingProvider) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	counting := &countingProvider{inner: NewFake(8)}
	cached := NewCachedProvider(counting, client, time.Hour, "dense-m", "sparse-m", nil)
	return cached, counting
}

func TestCachedProviderDense(t *testing.T) {
	cached, counting := newCachedProvider(t)
	ctx := context.Background()

	first, err := cached.EmbedDense(ctx, "some text")
	require.NoError(t, err)
	second, err := cached.EmbedDense(ctx, "some text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), counting.dense.Load())

	_, err = cached.EmbedDense(ctx, "different text")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counting.dense.Load())
}

func TestCachedProviderSparse(t *testing.T) {
	cached, counting := newCachedProvider(t)
	ctx := context.Background()

	first, err := cached.EmbedSparse(ctx, "some text")
	require.NoError(t, err)
	second, err := cached.EmbedSparse(ctx, "some text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), counting.sparse.Load())
}

func TestCachedProviderFallsThroughWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	counting := &countingProvider{inner: NewFake(8)}
	cached := NewCachedProvider(counting, client, time.Hour, "d", "s", nil)

	mr.Close()

	vec, err := cached.EmbedDense(context.Background(), "still works")
	require.NoError(t, err)
	assert.NotEmpty(t, vec)
	assert.Equal(t, int64(1), counting.dense.Load())
}
