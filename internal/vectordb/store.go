// Package vectordb defines the typed contract between BrainBox and the
// vector database. Backend implementations live in subpackages; the rest of
// the system only sees this interface.
package vectordb

import "context"

// Alias maps a human-readable collection alias to a physical collection.
type Alias struct {
	Name       string `json:"name"`
	Collection string `json:"collection"`
}

// Store is the capability surface BrainBox needs from a vector database.
type Store interface {
	// CreateCollection creates a collection with named vectors
	// "dense" (cosine, denseDim) and "sparse". Creating an existing
	// collection is a no-op.
	CreateCollection(ctx context.Context, name string, denseDim uint64) error
	// DeleteCollection removes a collection. Used only to roll back a
	// partially created brain.
	DeleteCollection(ctx context.Context, name string) error
	// CollectionExists reports whether the collection is present.
	CollectionExists(ctx context.Context, name string) (bool, error)
	// Upsert writes points at-least-once, retrying transient failures.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Query runs a dense, sparse, or RRF-fused search.
	Query(ctx context.Context, collection string, spec QuerySpec, filter *Filter, limit uint64) ([]ScoredPoint, error)
	// Scroll pages through payloads without vectors.
	Scroll(ctx context.Context, collection string, filter *Filter, limit uint32) ([]ScoredPoint, error)
	// Count returns the number of points matching the filter.
	Count(ctx context.Context, collection string, filter *Filter) (uint64, error)
	// CreateAlias maps alias -> collection.
	CreateAlias(ctx context.Context, alias, collection string) error
	// ListAliases enumerates all aliases.
	ListAliases(ctx context.Context) ([]Alias, error)
}
