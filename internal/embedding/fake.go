package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"

	"dev.helix.brainbox/internal/vectordb"
)

// Fake is a deterministic in-process Provider used by tests and local
// development. Words are hashed into buckets, so texts sharing vocabulary
// produce nearby dense vectors and overlapping sparse terms.
type Fake struct {
	Dim int
}

// NewFake returns a fake provider with the given dense dimensionality.
func NewFake(dim int) *Fake {
	if dim <= 0 {
		dim = 16
	}
	return &Fake{Dim: dim}
}

func (f *Fake) Dimension() int { return f.Dim }

func (f *Fake) EmbedDense(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, f.Dim)
	for _, word := range tokenizeWords(text) {
		vec[int(hashWord(word))%f.Dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (f *Fake) EmbedSparse(_ context.Context, text string) (vectordb.SparseVector, error) {
	counts := make(map[uint32]float32)
	for _, word := range tokenizeWords(text) {
		counts[hashWord(word)]++
	}

	indices := make([]uint32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = counts[idx]
	}
	return vectordb.SparseVector{Indices: indices, Values: values}, nil
}

func tokenizeWords(text string) []string {
	return strings.Fields(strings.ToLower(strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return ' '
	}, text)))
}

func hashWord(word string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(word))
	return h.Sum32()
}
