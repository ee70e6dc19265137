package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.brainbox/internal/embedding"
	"dev.helix.brainbox/internal/llm"
	"dev.helix.brainbox/internal/vectordb"
)

// scriptedLLM answers by prompt inspection, so tests stay deterministic.
type scriptedLLM struct {
	respond func(prompt string) (string, error)
}

func (s *scriptedLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	if len(req.Messages) == 0 {
		return "", errors.New("empty request")
	}
	return s.respond(req.Messages[len(req.Messages)-1].Content)
}

func staticLLM(response string) *scriptedLLM {
	return &scriptedLLM{respond: func(string) (string, error) { return response, nil }}
}

// seedBrain indexes the given texts into a fresh collection, one point each,
// and returns the collection name. pdfIDs[i] tags texts[i].
func seedBrain(t *testing.T, store *vectordb.MemStore, texts []string, pdfIDs []string) string {
	t.Helper()
	ctx := context.Background()
	fake := embedding.NewFake(16)

	brainID := uuid.NewString()
	require.NoError(t, store.CreateCollection(ctx, brainID, 16))

	points := make([]vectordb.Point, 0, len(texts))
	for i, text := range texts {
		dense, err := fake.EmbedDense(ctx, text)
		require.NoError(t, err)
		sparse, err := fake.EmbedSparse(ctx, text)
		require.NoError(t, err)
		points = append(points, vectordb.Point{
			ID:     uuid.NewString(),
			Dense:  dense,
			Sparse: sparse,
			Payload: vectordb.Payload{
				Content:  text,
				Metadata: vectordb.Metadata{PDFID: pdfIDs[i], FileName: "seed.pdf", BrainID: brainID},
			},
		})
	}
	require.NoError(t, store.Upsert(ctx, brainID, points))
	return brainID
}

func testRetriever(store *vectordb.MemStore, hydeLLM llm.Provider) *Retriever {
	return NewRetriever(store, embedding.NewFake(16), PassthroughReranker{}, hydeLLM, DefaultRetrieverConfig(), nil, nil)
}

func goldCorpus() ([]string, []string) {
	texts := []string{
		"The capital of Atlantis is Orichalcum.",
		"Sharks are older than trees by a wide margin.",
		"The mitochondria is the powerhouse of the cell.",
	}
	return texts, []string{"pdf-1", "pdf-2", "pdf-3"}
}

func TestRetrieveHybridRanksGoldChunkFirst(t *testing.T) {
	store := vectordb.NewMemStore()
	texts, ids := goldCorpus()
	brainID := seedBrain(t, store, texts, ids)
	r := testRetriever(store, staticLLM("unused"))

	docs, err := r.Retrieve(context.Background(), brainID, StrategyHybrid, "capital of Atlantis", nil)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Contains(t, docs[0].Content, "Orichalcum")
}

func TestRetrieveDenseAndSparse(t *testing.T) {
	store := vectordb.NewMemStore()
	texts, ids := goldCorpus()
	brainID := seedBrain(t, store, texts, ids)
	r := testRetriever(store, staticLLM("unused"))

	for _, strategy := range []Strategy{StrategyDense, StrategySparse} {
		t.Run(string(strategy), func(t *testing.T) {
			docs, err := r.Retrieve(context.Background(), brainID, strategy, "capital of Atlantis", nil)
			require.NoError(t, err)
			require.NotEmpty(t, docs)
			assert.Contains(t, docs[0].Content, "Orichalcum")
		})
	}
}

func TestRetrieveHonorsPDFFilter(t *testing.T) {
	store := vectordb.NewMemStore()
	texts, ids := goldCorpus()
	brainID := seedBrain(t, store, texts, ids)
	r := testRetriever(store, staticLLM("unused"))

	docs, err := r.Retrieve(context.Background(), brainID, StrategyHybrid, "capital of Atlantis", []string{"pdf-2"})
	require.NoError(t, err)
	for _, d := range docs {
		assert.Equal(t, "pdf-2", d.Metadata.PDFID)
	}
}

func TestRetrieveHyDEUsesHypotheticalDocument(t *testing.T) {
	store := vectordb.NewMemStore()
	texts, ids := goldCorpus()
	brainID := seedBrain(t, store, texts, ids)

	hyde := &scriptedLLM{respond: func(prompt string) (string, error) {
		if !strings.Contains(prompt, "capital of Atlantis") {
			return "", errors.New("unexpected prompt")
		}
		return "The capital of Atlantis is Orichalcum, a city of bronze.", nil
	}}
	r := testRetriever(store, hyde)

	docs, err := r.Retrieve(context.Background(), brainID, StrategyHyDE, "capital of Atlantis", nil)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Contains(t, docs[0].Content, "Orichalcum")
}

func TestRetrieveHyDEPropagatesLLMFailure(t *testing.T) {
	store := vectordb.NewMemStore()
	texts, ids := goldCorpus()
	brainID := seedBrain(t, store, texts, ids)

	hyde := &scriptedLLM{respond: func(string) (string, error) {
		return "", errors.New("model unavailable")
	}}
	r := testRetriever(store, hyde)

	_, err := r.Retrieve(context.Background(), brainID, StrategyHyDE, "anything", nil)
	require.Error(t, err)
}

func TestRetrieveSparseNoOverlapIsEmpty(t *testing.T) {
	store := vectordb.NewMemStore()
	texts, ids := goldCorpus()
	brainID := seedBrain(t, store, texts, ids)
	r := testRetriever(store, staticLLM("unused"))

	docs, err := r.Retrieve(context.Background(), brainID, StrategySparse, "xyzzy plugh", nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRetrieveUnknownStrategy(t *testing.T) {
	store := vectordb.NewMemStore()
	texts, ids := goldCorpus()
	brainID := seedBrain(t, store, texts, ids)
	r := testRetriever(store, staticLLM("unused"))

	_, err := r.Retrieve(context.Background(), brainID, Strategy("cosmic"), "q", nil)
	require.Error(t, err)
}
