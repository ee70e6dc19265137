// Package ingest turns uploaded PDFs into indexed points: chunk, embed both
// vector spaces, upsert, and register the file so repeat uploads are skipped.
package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dev.helix.brainbox/internal/apperrors"
	"dev.helix.brainbox/internal/catalog"
	"dev.helix.brainbox/internal/chunker"
	"dev.helix.brainbox/internal/embedding"
	"dev.helix.brainbox/internal/observability"
	"dev.helix.brainbox/internal/vectordb"
)

// defaultUpsertBatch bounds how many points go into one upsert call.
const defaultUpsertBatch = 64

// Chunker splits raw PDF bytes into text chunks.
type Chunker interface {
	Chunk(data []byte) ([]chunker.Chunk, error)
}

// Result reports the outcome of one ingestion.
type Result struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	PDFID        string `json:"pdf_id,omitempty"`
	ChunkCount   int    `json:"chunk_count"`
	InvalidCount int    `json:"invalid_count"`
}

// Pipeline ingests PDFs into a brain's collection.
type Pipeline struct {
	store       vectordb.Store
	catalog     *catalog.Catalog
	chunker     Chunker
	embedder    embedding.Provider
	concurrency int
	batchSize   int
	metrics     *observability.Metrics
	logger      *logrus.Logger
}

// New builds a pipeline. concurrency bounds how many chunks embed in
// parallel; batchSize bounds one upsert call.
func New(store vectordb.Store, cat *catalog.Catalog, ch Chunker, embedder embedding.Provider, concurrency, batchSize int, metrics *observability.Metrics, logger *logrus.Logger) *Pipeline {
	if concurrency <= 0 {
		concurrency = 4
	}
	if batchSize <= 0 {
		batchSize = defaultUpsertBatch
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Pipeline{
		store:       store,
		catalog:     cat,
		chunker:     ch,
		embedder:    embedder,
		concurrency: concurrency,
		batchSize:   batchSize,
		metrics:     metrics,
		logger:      logger,
	}
}

// Ingest processes one uploaded PDF. Files already registered under the same
// name are skipped. Chunks whose embedding fails in either space are dropped
// and counted; the file is registered only after every surviving chunk is
// upserted, so a crash mid-ingest leaves the file eligible for re-upload.
func (p *Pipeline) Ingest(ctx context.Context, brainID, fileName string, data []byte) (Result, error) {
	known, err := p.catalog.CheckFile(ctx, brainID, fileName)
	if err != nil {
		return Result{}, err
	}
	if known {
		p.logger.WithFields(logrus.Fields{
			"brain_id":  brainID,
			"file_name": fileName,
		}).Info("File already ingested, skipping")
		return Result{Success: true, Message: fmt.Sprintf("file %q already exists in brain", fileName)}, nil
	}

	chunks, err := p.chunker.Chunk(data)
	if err != nil {
		return Result{}, err
	}

	pdfID := uuid.NewString()
	points, invalid, err := p.embedChunks(ctx, brainID, fileName, pdfID, chunks)
	if err != nil {
		return Result{}, err
	}
	if len(points) == 0 {
		return Result{}, apperrors.E(apperrors.KindUnsupported,
			fmt.Sprintf("all %d chunks of %q failed to embed", len(chunks), fileName))
	}

	for start := 0; start < len(points); start += p.batchSize {
		end := start + p.batchSize
		if end > len(points) {
			end = len(points)
		}
		if err := p.store.Upsert(ctx, brainID, points[start:end]); err != nil {
			return Result{}, fmt.Errorf("failed to upsert chunk batch: %w", err)
		}
	}

	if err := p.catalog.RegisterFile(ctx, brainID, fileName, pdfID); err != nil {
		return Result{}, err
	}

	if p.metrics != nil {
		p.metrics.ChunksIngested.Add(float64(len(points)))
	}
	p.logger.WithFields(logrus.Fields{
		"brain_id":  brainID,
		"file_name": fileName,
		"pdf_id":    pdfID,
		"chunks":    len(points),
		"invalid":   invalid,
	}).Info("File ingested")

	msg := fmt.Sprintf("ingested %q with %d chunks", fileName, len(points))
	if invalid > 0 {
		msg = fmt.Sprintf("%s (%d chunks dropped)", msg, invalid)
	}
	return Result{
		Success:      true,
		Message:      msg,
		PDFID:        pdfID,
		ChunkCount:   len(points),
		InvalidCount: invalid,
	}, nil
}

// embedChunks embeds every chunk in both spaces with bounded concurrency.
// A failed chunk is dropped, not fatal; order of surviving points follows
// chunk order.
func (p *Pipeline) embedChunks(ctx context.Context, brainID, fileName, pdfID string, chunks []chunker.Chunk) ([]vectordb.Point, int, error) {
	results := make([]*vectordb.Point, len(chunks))
	var mu sync.Mutex
	invalid := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			dense, err := p.embedder.EmbedDense(gctx, chunk.Content)
			if err != nil {
				p.noteFailure(&mu, &invalid, chunk.PageNo, "dense", err)
				return nil
			}
			sparse, err := p.embedder.EmbedSparse(gctx, chunk.Content)
			if err != nil {
				p.noteFailure(&mu, &invalid, chunk.PageNo, "sparse", err)
				return nil
			}
			results[i] = &vectordb.Point{
				ID:     uuid.NewString(),
				Dense:  dense,
				Sparse: sparse,
				Payload: vectordb.Payload{
					Content: chunk.Content,
					Metadata: vectordb.Metadata{
						PDFID:    pdfID,
						FileName: fileName,
						BrainID:  brainID,
						PageNo:   chunk.PageNo,
					},
				},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	points := make([]vectordb.Point, 0, len(results))
	for _, r := range results {
		if r != nil {
			points = append(points, *r)
		}
	}
	return points, invalid, nil
}

func (p *Pipeline) noteFailure(mu *sync.Mutex, invalid *int, pageNo int, space string, err error) {
	mu.Lock()
	*invalid++
	mu.Unlock()
	if p.metrics != nil {
		p.metrics.EmbeddingFailures.WithLabelValues(space).Inc()
	}
	p.logger.WithFields(logrus.Fields{
		"page_no": pageNo,
		"space":   space,
	}).WithError(err).Warn("Chunk embedding failed, dropping chunk")
}
