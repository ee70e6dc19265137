// Package rag implements retrieval strategies, answer generation, and
// response evaluation over brain collections.
package rag

import (
	"strings"

	"dev.helix.brainbox/internal/vectordb"
)

// Strategy names a retrieval strategy.
type Strategy string

const (
	StrategyDense  Strategy = "dense"
	StrategySparse Strategy = "sparse"
	StrategyHybrid Strategy = "hybrid"
	StrategyHyDE   Strategy = "hyde"
)

// Strategies lists every retrieval strategy in fan-out order.
var Strategies = []Strategy{StrategyHybrid, StrategyHyDE, StrategyDense, StrategySparse}

// SelectedPDF scopes a question to one ingested file.
type SelectedPDF struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
}

// Request is a question scoped to a brain and an optional file subset.
type Request struct {
	Query        string        `json:"query"`
	SelectedPDFs []SelectedPDF `json:"selected_pdfs"`
}

// PDFIDs extracts the non-empty file ids of the request.
func (r Request) PDFIDs() []string {
	ids := make([]string, 0, len(r.SelectedPDFs))
	for _, p := range r.SelectedPDFs {
		if p.FileID != "" {
			ids = append(ids, p.FileID)
		}
	}
	return ids
}

// Document is a retrieved chunk with its metadata and score.
type Document struct {
	Content  string            `json:"content"`
	Metadata vectordb.Metadata `json:"metadata"`
	Score    float32           `json:"score"`
}

// Answer is the result of one strategy's retrieve-and-generate pass.
type Answer struct {
	Response         string `json:"response"`
	ResponseStatus   int    `json:"response_status"`
	RetrievedContext string `json:"retrieved_context"`
}

// StrategyResult pairs a strategy with either its answer or its failure.
type StrategyResult struct {
	Strategy Strategy
	Answer   Answer
	Err      error
}

// CombineContext joins document contents with single spaces.
func CombineContext(docs []Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.Content != "" {
			parts = append(parts, d.Content)
		}
	}
	return strings.Join(parts, " ")
}
