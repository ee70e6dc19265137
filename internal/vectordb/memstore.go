package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// rrfK is the conventional Reciprocal Rank Fusion constant.
const rrfK = 60

// MemStore is an in-memory Store used by tests and local development. Its
// scoring is deterministic: cosine similarity for dense, dot product over
// shared term ids for sparse, and RRF with k=60 for fusion, ties broken by
// the dense list's order.
type MemStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	aliases     map[string]string // alias -> collection
}

type memCollection struct {
	denseDim uint64
	points   map[string]Point
	order    []string // insertion order, for stable scroll
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		collections: make(map[string]*memCollection),
		aliases:     make(map[string]string),
	}
}

func (s *MemStore) CreateCollection(_ context.Context, name string, denseDim uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return nil
	}
	s.collections[name] = &memCollection{
		denseDim: denseDim,
		points:   make(map[string]Point),
	}
	return nil
}

func (s *MemStore) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	for alias, coll := range s.aliases {
		if coll == name {
			delete(s.aliases, alias)
		}
	}
	return nil
}

func (s *MemStore) CollectionExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *MemStore) Upsert(_ context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("collection %q does not exist", collection)
	}
	for _, p := range points {
		if _, exists := coll.points[p.ID]; !exists {
			coll.order = append(coll.order, p.ID)
		}
		coll.points[p.ID] = p
	}
	return nil
}

func (s *MemStore) Query(_ context.Context, collection string, spec QuerySpec, filter *Filter, limit uint64) ([]ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", collection)
	}

	candidates := coll.matching(filter)

	var hits []ScoredPoint
	switch q := spec.(type) {
	case DenseQuery:
		hits = rankDense(candidates, q.Vector, limit)
	case SparseQuery:
		hits = rankSparse(candidates, q.Vector, limit)
	case FusionQuery:
		hits = rankFused(candidates, q, limit)
	default:
		return nil, fmt.Errorf("unsupported query spec %T", spec)
	}
	return hits, nil
}

func (s *MemStore) Scroll(_ context.Context, collection string, filter *Filter, limit uint32) ([]ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", collection)
	}

	var out []ScoredPoint
	for _, id := range coll.order {
		p := coll.points[id]
		if !matches(p.Payload, filter) {
			continue
		}
		out = append(out, ScoredPoint{ID: p.ID, Payload: p.Payload})
		if uint32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemStore) Count(_ context.Context, collection string, filter *Filter) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("collection %q does not exist", collection)
	}
	var n uint64
	for _, p := range coll.points {
		if matches(p.Payload, filter) {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) CreateAlias(_ context.Context, alias, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection]; !ok {
		return fmt.Errorf("collection %q does not exist", collection)
	}
	s.aliases[alias] = collection
	return nil
}

func (s *MemStore) ListAliases(_ context.Context) ([]Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Alias, 0, len(s.aliases))
	for alias, coll := range s.aliases {
		out = append(out, Alias{Name: alias, Collection: coll})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// PointCount returns the raw point count of a collection, for test assertions.
func (s *MemStore) PointCount(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[collection]
	if !ok {
		return 0
	}
	return len(coll.points)
}

func (c *memCollection) matching(filter *Filter) []Point {
	out := make([]Point, 0, len(c.order))
	for _, id := range c.order {
		p := c.points[id]
		if matches(p.Payload, filter) {
			out = append(out, p)
		}
	}
	return out
}

func matches(payload Payload, filter *Filter) bool {
	if filter == nil {
		return true
	}
	for _, cond := range filter.Must {
		value := fieldValue(payload, cond.Key)
		found := false
		for _, want := range cond.Values {
			if value == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func fieldValue(payload Payload, key string) string {
	switch strings.TrimPrefix(key, "metadata.") {
	case "pdf_id":
		return payload.Metadata.PDFID
	case "file_name":
		return payload.Metadata.FileName
	case "brain_id":
		return payload.Metadata.BrainID
	}
	if key == "content" {
		return payload.Content
	}
	return ""
}

func rankDense(points []Point, query []float32, limit uint64) []ScoredPoint {
	hits := make([]ScoredPoint, 0, len(points))
	for _, p := range points {
		if len(p.Dense) == 0 {
			continue
		}
		hits = append(hits, ScoredPoint{ID: p.ID, Score: cosine(query, p.Dense), Payload: p.Payload})
	}
	sortHits(hits)
	return truncateHits(hits, limit)
}

func rankSparse(points []Point, query SparseVector, limit uint64) []ScoredPoint {
	hits := make([]ScoredPoint, 0, len(points))
	for _, p := range points {
		if p.Sparse.IsZero() {
			continue
		}
		score := sparseDot(query, p.Sparse)
		if score == 0 {
			continue
		}
		hits = append(hits, ScoredPoint{ID: p.ID, Score: score, Payload: p.Payload})
	}
	sortHits(hits)
	return truncateHits(hits, limit)
}

func rankFused(points []Point, q FusionQuery, limit uint64) []ScoredPoint {
	type fused struct {
		hit       ScoredPoint
		score     float64
		denseRank int
	}
	byID := make(map[string]*fused)

	for _, pre := range q.Prefetch {
		var ranked []ScoredPoint
		switch pre.Using {
		case UsingSparse:
			if pre.Sparse != nil {
				ranked = rankSparse(points, *pre.Sparse, pre.Limit)
			}
		default:
			ranked = rankDense(points, pre.Dense, pre.Limit)
		}
		for rank, hit := range ranked {
			f, ok := byID[hit.ID]
			if !ok {
				f = &fused{hit: hit, denseRank: math.MaxInt32}
				byID[hit.ID] = f
			}
			f.score += 1.0 / float64(rrfK+rank+1)
			if pre.Using == UsingDense && rank < f.denseRank {
				f.denseRank = rank
			}
		}
	}

	all := make([]*fused, 0, len(byID))
	for _, f := range byID {
		all = append(all, f)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].denseRank < all[j].denseRank
	})

	hits := make([]ScoredPoint, 0, len(all))
	for _, f := range all {
		h := f.hit
		h.Score = float32(f.score)
		hits = append(hits, h)
	}
	return truncateHits(hits, limit)
}

func sortHits(hits []ScoredPoint) {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}

func truncateHits(hits []ScoredPoint, limit uint64) []ScoredPoint {
	if limit > 0 && uint64(len(hits)) > limit {
		hits = hits[:limit]
	}
	return hits
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func sparseDot(a, b SparseVector) float32 {
	values := make(map[uint32]float32, len(a.Indices))
	for i, idx := range a.Indices {
		values[idx] = a.Values[i]
	}
	var dot float32
	for i, idx := range b.Indices {
		if v, ok := values[idx]; ok {
			dot += v * b.Values[i]
		}
	}
	return dot
}
