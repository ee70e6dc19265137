package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"dev.helix.brainbox/internal/vectordb"
)

// CachedProvider wraps a Provider with a Redis cache keyed on
// model + text hash. Cache failures are logged and fall through to the
// backing provider; embeddings are deterministic so staleness is not a
// concern, only TTL-bounded memory use.
type CachedProvider struct {
	inner       Provider
	client      *redis.Client
	ttl         time.Duration
	denseModel  string
	sparseModel string
	logger      *logrus.Logger
}

// NewCachedProvider wraps inner with a Redis cache.
func NewCachedProvider(inner Provider, client *redis.Client, ttl time.Duration, denseModel, sparseModel string, logger *logrus.Logger) *CachedProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &CachedProvider{
		inner:       inner,
		client:      client,
		ttl:         ttl,
		denseModel:  denseModel,
		sparseModel: sparseModel,
		logger:      logger,
	}
}

func (c *CachedProvider) Dimension() int { return c.inner.Dimension() }

func (c *CachedProvider) EmbedDense(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey("dense", c.denseModel, text)

	var cached []float32
	if c.lookup(ctx, key, &cached) {
		return cached, nil
	}

	vec, err := c.inner.EmbedDense(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, vec)
	return vec, nil
}

func (c *CachedProvider) EmbedSparse(ctx context.Context, text string) (vectordb.SparseVector, error) {
	key := cacheKey("sparse", c.sparseModel, text)

	var cached vectordb.SparseVector
	if c.lookup(ctx, key, &cached) {
		return cached, nil
	}

	vec, err := c.inner.EmbedSparse(ctx, text)
	if err != nil {
		return vectordb.SparseVector{}, err
	}
	c.store(ctx, key, vec)
	return vec, nil
}

func (c *CachedProvider) lookup(ctx context.Context, key string, out any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Debug("Embedding cache lookup failed")
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.WithError(err).Warn("Corrupt embedding cache entry, ignoring")
		return false
	}
	return true
}

func (c *CachedProvider) store(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Debug("Embedding cache store failed")
	}
}

func cacheKey(space, model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + space + ":" + model + ":" + hex.EncodeToString(sum[:])
}
