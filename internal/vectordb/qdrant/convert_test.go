package qdrant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.brainbox/internal/vectordb"
)

func TestToPointStruct(t *testing.T) {
	p := vectordb.Point{
		ID:    "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		Dense: []float32{0.1, 0.2},
		Sparse: vectordb.SparseVector{
			Indices: []uint32{3, 7},
			Values:  []float32{0.5, 0.9},
		},
		Payload: vectordb.Payload{
			Content: "some text",
			Metadata: vectordb.Metadata{
				PDFID:    "pdf-1",
				FileName: "doc.pdf",
				BrainID:  "brain-1",
				PageNo:   2,
			},
		},
	}

	ps := toPointStruct(p)

	require.NotNil(t, ps.Id)
	assert.Equal(t, p.ID, ps.Id.GetUuid())

	vectors := ps.Vectors.GetVectors().GetVectors()
	require.Contains(t, vectors, vectordb.UsingDense)
	require.Contains(t, vectors, vectordb.UsingSparse)

	assert.Equal(t, "some text", ps.Payload["content"].GetStringValue())
	meta := ps.Payload["metadata"].GetStructValue().GetFields()
	assert.Equal(t, "pdf-1", meta["pdf_id"].GetStringValue())
	assert.Equal(t, "doc.pdf", meta["file_name"].GetStringValue())
	assert.Equal(t, int64(2), meta["page_no"].GetIntegerValue())
}

func TestToPointStructOmitsMissingVectors(t *testing.T) {
	p := vectordb.Point{
		ID:    "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		Dense: []float32{0},
	}

	vectors := toPointStruct(p).Vectors.GetVectors().GetVectors()
	assert.Contains(t, vectors, vectordb.UsingDense)
	assert.NotContains(t, vectors, vectordb.UsingSparse)
}

func TestToFilter(t *testing.T) {
	t.Run("nil filter", func(t *testing.T) {
		assert.Nil(t, toFilter(nil))
		assert.Nil(t, toFilter(&vectordb.Filter{}))
	})

	t.Run("single value uses exact match", func(t *testing.T) {
		f := toFilter(vectordb.MatchPDFs([]string{"a"}))
		require.NotNil(t, f)
		require.Len(t, f.Must, 1)
		match := f.Must[0].GetField().GetMatch()
		assert.Equal(t, "a", match.GetKeyword())
	})

	t.Run("multiple values match any", func(t *testing.T) {
		f := toFilter(vectordb.MatchPDFs([]string{"a", "b"}))
		require.NotNil(t, f)
		match := f.Must[0].GetField().GetMatch()
		assert.ElementsMatch(t, []string{"a", "b"}, match.GetKeywords().GetStrings())
	})
}

func TestPayloadRoundTrip(t *testing.T) {
	p := vectordb.Point{
		ID:    "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		Dense: []float32{1},
		Payload: vectordb.Payload{
			Content: "round trip",
			Metadata: vectordb.Metadata{
				PDFID:    "pdf-9",
				FileName: "nine.pdf",
				BrainID:  "brain-9",
				PageNo:   4,
			},
		},
	}

	got := fromPayload(toPointStruct(p).Payload)
	assert.Equal(t, p.Payload, got)
}
