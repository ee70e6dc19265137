package vectordb

// Vector space names inside every brain collection.
const (
	UsingDense  = "dense"
	UsingSparse = "sparse"
)

// SparseVector is a term-id/weight pairing. Indices are ascending and
// unique; Indices and Values have matching lengths.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// IsZero reports whether the vector carries no terms.
func (v SparseVector) IsZero() bool { return len(v.Indices) == 0 }

// Metadata identifies the source of a chunk inside a brain.
type Metadata struct {
	PDFID    string `json:"pdf_id"`
	FileName string `json:"file_name"`
	BrainID  string `json:"brain_id"`
	PageNo   int    `json:"page_no,omitempty"`
}

// Payload is what a point carries besides its vectors.
type Payload struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Point is a physical index entry. A content point always has both a dense
// and a sparse vector; registry points carry a placeholder dense vector only.
type Point struct {
	ID      string
	Dense   []float32
	Sparse  SparseVector
	Payload Payload
}

// ScoredPoint is a query or scroll hit. Scroll results have Score zero.
type ScoredPoint struct {
	ID      string
	Score   float32
	Payload Payload
}

// FieldMatch is an exact-match condition on a payload field. Values with
// more than one entry match any of them.
type FieldMatch struct {
	Key    string
	Values []string
}

// Filter is a conjunction of field matches.
type Filter struct {
	Must []FieldMatch
}

// MatchPDFs builds the per-document filter used by every retrieval strategy.
// An empty id set means no filter.
func MatchPDFs(pdfIDs []string) *Filter {
	if len(pdfIDs) == 0 {
		return nil
	}
	return &Filter{Must: []FieldMatch{{Key: "metadata.pdf_id", Values: pdfIDs}}}
}

// QuerySpec is the tagged union of supported query shapes.
type QuerySpec interface {
	isQuerySpec()
}

// DenseQuery searches the dense vector space.
type DenseQuery struct {
	Vector []float32
}

// SparseQuery searches the sparse vector space.
type SparseQuery struct {
	Vector SparseVector
}

// Prefetch is one ranked candidate list feeding an RRF fusion. Exactly one
// of Dense or Sparse is set, matching Using.
type Prefetch struct {
	Dense  []float32
	Sparse *SparseVector
	Using  string
	Limit  uint64
}

// FusionQuery fuses prefetched rankings with Reciprocal Rank Fusion.
type FusionQuery struct {
	Prefetch []Prefetch
}

func (DenseQuery) isQuerySpec()  {}
func (SparseQuery) isQuerySpec() {}
func (FusionQuery) isQuerySpec() {}
