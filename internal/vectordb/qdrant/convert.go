package qdrant

import (
	"github.com/qdrant/go-client/qdrant"

	"dev.helix.brainbox/internal/vectordb"
)

func toPointStruct(p vectordb.Point) *qdrant.PointStruct {
	vectors := make(map[string]*qdrant.Vector, 2)
	if len(p.Dense) > 0 {
		vectors[vectordb.UsingDense] = qdrant.NewVectorDense(p.Dense)
	}
	if !p.Sparse.IsZero() {
		vectors[vectordb.UsingSparse] = qdrant.NewVectorSparse(p.Sparse.Indices, p.Sparse.Values)
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewID(p.ID),
		Vectors: qdrant.NewVectorsMap(vectors),
		Payload: qdrant.NewValueMap(map[string]any{
			"content": p.Payload.Content,
			"metadata": map[string]any{
				"pdf_id":    p.Payload.Metadata.PDFID,
				"file_name": p.Payload.Metadata.FileName,
				"brain_id":  p.Payload.Metadata.BrainID,
				"page_no":   p.Payload.Metadata.PageNo,
			},
		}),
	}
}

func toFilter(f *vectordb.Filter) *qdrant.Filter {
	if f == nil || len(f.Must) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(f.Must))
	for _, m := range f.Must {
		if len(m.Values) == 1 {
			must = append(must, qdrant.NewMatch(m.Key, m.Values[0]))
			continue
		}
		must = append(must, qdrant.NewMatchKeywords(m.Key, m.Values...))
	}
	return &qdrant.Filter{Must: must}
}

func fromPayload(values map[string]*qdrant.Value) vectordb.Payload {
	payload := vectordb.Payload{}
	if v, ok := values["content"]; ok {
		payload.Content = v.GetStringValue()
	}
	meta, ok := values["metadata"]
	if !ok {
		return payload
	}
	fields := meta.GetStructValue().GetFields()
	if v, ok := fields["pdf_id"]; ok {
		payload.Metadata.PDFID = v.GetStringValue()
	}
	if v, ok := fields["file_name"]; ok {
		payload.Metadata.FileName = v.GetStringValue()
	}
	if v, ok := fields["brain_id"]; ok {
		payload.Metadata.BrainID = v.GetStringValue()
	}
	if v, ok := fields["page_no"]; ok {
		payload.Metadata.PageNo = int(v.GetIntegerValue())
	}
	return payload
}
