package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"dev.helix.brainbox/internal/vectordb"
)

// Query runs a dense, sparse, or RRF-fused search against a collection.
func (c *Client) Query(ctx context.Context, collection string, spec vectordb.QuerySpec, filter *vectordb.Filter, limit uint64) ([]vectordb.ScoredPoint, error) {
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Filter:         toFilter(filter),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	switch q := spec.(type) {
	case vectordb.DenseQuery:
		req.Query = qdrant.NewQueryDense(q.Vector)
		req.Using = qdrant.PtrOf(vectordb.UsingDense)
	case vectordb.SparseQuery:
		req.Query = qdrant.NewQuerySparse(q.Vector.Indices, q.Vector.Values)
		req.Using = qdrant.PtrOf(vectordb.UsingSparse)
	case vectordb.FusionQuery:
		req.Query = qdrant.NewQueryFusion(qdrant.Fusion_RRF)
		req.Prefetch = toPrefetch(q.Prefetch)
	default:
		return nil, fmt.Errorf("unsupported query spec %T", spec)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	scored, err := c.api.Query(ctx, req)
	if err != nil {
		return nil, classify(fmt.Sprintf("query against %q failed", collection), err)
	}

	hits := make([]vectordb.ScoredPoint, 0, len(scored))
	for _, sp := range scored {
		hits = append(hits, vectordb.ScoredPoint{
			ID:      sp.GetId().GetUuid(),
			Score:   sp.GetScore(),
			Payload: fromPayload(sp.GetPayload()),
		})
	}
	return hits, nil
}

// Scroll pages through payloads without vectors.
func (c *Client) Scroll(ctx context.Context, collection string, filter *vectordb.Filter, limit uint32) ([]vectordb.ScoredPoint, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	points, err := c.api.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         toFilter(filter),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("scroll against %q failed", collection), err)
	}

	hits := make([]vectordb.ScoredPoint, 0, len(points))
	for _, p := range points {
		hits = append(hits, vectordb.ScoredPoint{
			ID:      p.GetId().GetUuid(),
			Payload: fromPayload(p.GetPayload()),
		})
	}
	return hits, nil
}

func toPrefetch(prefetches []vectordb.Prefetch) []*qdrant.PrefetchQuery {
	out := make([]*qdrant.PrefetchQuery, 0, len(prefetches))
	for _, p := range prefetches {
		pq := &qdrant.PrefetchQuery{
			Using: qdrant.PtrOf(p.Using),
			Limit: qdrant.PtrOf(p.Limit),
		}
		if p.Sparse != nil {
			pq.Query = qdrant.NewQuerySparse(p.Sparse.Indices, p.Sparse.Values)
		} else {
			pq.Query = qdrant.NewQueryDense(p.Dense)
		}
		out = append(out, pq)
	}
	return out
}
