// Package qdrant implements vectordb.Store on top of the official Qdrant
// gRPC client.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"dev.helix.brainbox/internal/apperrors"
	"dev.helix.brainbox/internal/vectordb"
)

// Config configures the Qdrant connection and retry behavior.
type Config struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	APIKey        string        `json:"api_key"`
	UseTLS        bool          `json:"use_tls"`
	Timeout       time.Duration `json:"timeout"`
	UpsertRetries int           `json:"upsert_retries"`
	UpsertBackoff time.Duration `json:"upsert_backoff"`
}

// DefaultConfig returns defaults matching a local Qdrant instance.
func DefaultConfig() *Config {
	return &Config{
		Host:          "localhost",
		Port:          6334,
		Timeout:       30 * time.Second,
		UpsertRetries: 3,
		UpsertBackoff: 500 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// Client wraps the official Qdrant client behind vectordb.Store.
type Client struct {
	config *Config
	api    *qdrant.Client
	logger *logrus.Logger
}

var _ vectordb.Store = (*Client)(nil)

// NewClient creates a Qdrant-backed store.
func NewClient(config *Config, logger *logrus.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}

	api, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Client{config: config, api: api, logger: logger}, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.api.Close()
}

// HealthCheck verifies connectivity.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if _, err := c.api.HealthCheck(ctx); err != nil {
		return classify("qdrant health check failed", err)
	}
	return nil
}

// CreateCollection creates a collection with named "dense" and "sparse"
// vector spaces. Re-creating an existing collection is a no-op.
func (c *Client) CreateCollection(ctx context.Context, name string, denseDim uint64) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	exists, err := c.api.CollectionExists(ctx, name)
	if err != nil {
		return classify("failed to check collection existence", err)
	}
	if exists {
		c.logger.WithField("collection", name).Debug("Collection already exists")
		return nil
	}

	err = c.api.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectordb.UsingDense: {
				Size:     denseDim,
				Distance: qdrant.Distance_Cosine,
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			vectordb.UsingSparse: {},
		}),
	})
	if err != nil {
		return classify(fmt.Sprintf("failed to create collection %q", name), err)
	}

	c.logger.WithFields(logrus.Fields{
		"collection": name,
		"dense_dim":  denseDim,
	}).Info("Collection created")
	return nil
}

// DeleteCollection removes a collection.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.api.DeleteCollection(ctx, name); err != nil {
		return classify(fmt.Sprintf("failed to delete collection %q", name), err)
	}
	c.logger.WithField("collection", name).Info("Collection deleted")
	return nil
}

// CollectionExists reports whether the collection is present.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	exists, err := c.api.CollectionExists(ctx, name)
	if err != nil {
		return false, classify("failed to check collection existence", err)
	}
	return exists, nil
}

// Upsert writes points, retrying transient failures with exponential backoff.
func (c *Client) Upsert(ctx context.Context, collection string, points []vectordb.Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		structs = append(structs, toPointStruct(p))
	}

	backoff := c.config.UpsertBackoff
	var lastErr error
	for attempt := 0; attempt <= c.config.UpsertRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return apperrors.Wrap(apperrors.KindTransient, "upsert cancelled", ctx.Err())
			}
			backoff *= 2
		}

		err := c.upsertOnce(ctx, collection, structs)
		if err == nil {
			return nil
		}
		lastErr = err
		if !apperrors.IsTransient(err) {
			return err
		}
		c.logger.WithFields(logrus.Fields{
			"collection": collection,
			"attempt":    attempt + 1,
		}).WithError(err).Warn("Upsert failed, retrying")
	}
	return lastErr
}

func (c *Client) upsertOnce(ctx context.Context, collection string, points []*qdrant.PointStruct) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return classify(fmt.Sprintf("failed to upsert into %q", collection), err)
	}
	return nil
}

// Count returns the number of points matching the filter.
func (c *Client) Count(ctx context.Context, collection string, filter *vectordb.Filter) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	n, err := c.api.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         toFilter(filter),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, classify(fmt.Sprintf("failed to count points in %q", collection), err)
	}
	return n, nil
}

// CreateAlias maps alias -> collection.
func (c *Client) CreateAlias(ctx context.Context, alias, collection string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.api.CreateAlias(ctx, alias, collection); err != nil {
		return classify(fmt.Sprintf("failed to create alias %q", alias), err)
	}
	c.logger.WithFields(logrus.Fields{
		"alias":      alias,
		"collection": collection,
	}).Info("Alias created")
	return nil
}

// ListAliases enumerates all aliases.
func (c *Client) ListAliases(ctx context.Context) ([]vectordb.Alias, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	descriptions, err := c.api.ListAliases(ctx)
	if err != nil {
		return nil, classify("failed to list aliases", err)
	}
	aliases := make([]vectordb.Alias, 0, len(descriptions))
	for _, d := range descriptions {
		aliases = append(aliases, vectordb.Alias{
			Name:       d.GetAliasName(),
			Collection: d.GetCollectionName(),
		})
	}
	return aliases, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.config.Timeout)
}

// classify maps gRPC failure codes onto the shared error taxonomy.
func classify(message string, err error) error {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return apperrors.Wrap(apperrors.KindTransient, message, err)
		case codes.NotFound:
			return apperrors.Wrap(apperrors.KindNotFound, message, err)
		case codes.AlreadyExists:
			return apperrors.Wrap(apperrors.KindAlreadyExists, message, err)
		case codes.InvalidArgument:
			return apperrors.Wrap(apperrors.KindInvalid, message, err)
		}
	}
	return apperrors.Wrap(apperrors.KindInternal, message, err)
}
