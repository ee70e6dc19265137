package rag

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"dev.helix.brainbox/internal/vectordb"
)

// evalWorkbook builds a minimal two-sheet workbook with the given rows of
// (question, ground truth).
func evalWorkbook(t *testing.T, rows [][2]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for _, sheet := range []string{sheetLLMEval, sheetRetrieverEval} {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, "A1", "Question"))
		require.NoError(t, f.SetCellValue(sheet, "B1", "Ground Truth"))
		for i, row := range rows {
			cellA, err := excelize.CoordinatesToCellName(1, i+2)
			require.NoError(t, err)
			cellB, err := excelize.CoordinatesToCellName(2, i+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cellA, row[0]))
			require.NoError(t, f.SetCellValue(sheet, cellB, row[1]))
		}
	}
	require.NoError(t, f.DeleteSheet("Sheet1"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func testBatchEvaluator(t *testing.T) (*BatchEvaluator, string) {
	t.Helper()
	store := vectordb.NewMemStore()
	texts, ids := goldCorpus()
	brainID := seedBrain(t, store, texts, ids)

	model := answeringLLM()
	retriever := testRetriever(store, model)
	orchestrator := NewOrchestrator(retriever, model, nil, nil)
	evaluator := NewEvaluator(&recordingLLM{response: rewardString}, &recordingLLM{response: "A: truth"}, nil)
	return NewBatchEvaluator(orchestrator, evaluator, nil), brainID
}

func cellValue(t *testing.T, f *excelize.File, sheet string, header string, rowNo int) string {
	t.Helper()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	col := findColumn(rows[0], header)
	require.GreaterOrEqual(t, col, 0, "column %q missing", header)
	cell, err := excelize.CoordinatesToCellName(col+1, rowNo)
	require.NoError(t, err)
	value, err := f.GetCellValue(sheet, cell)
	require.NoError(t, err)
	return value
}

func TestEvaluateWorkbookFillsBothSheets(t *testing.T) {
	b, brainID := testBatchEvaluator(t)
	workbook := evalWorkbook(t, [][2]string{
		{"capital of Atlantis", "Orichalcum"},
	})

	out, err := b.EvaluateWorkbook(context.Background(), brainID, nil, workbook)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Contains(t, cellValue(t, f, sheetLLMEval, "LLM Response", 2), "Orichalcum")
	assert.Equal(t, "3.5", cellValue(t, f, sheetLLMEval, "Helpfulness", 2))
	assert.Equal(t, "4", cellValue(t, f, sheetLLMEval, "Correctness", 2))

	assert.Contains(t, cellValue(t, f, sheetRetrieverEval, "Retriever Response", 2), "Orichalcum")
	assert.Equal(t, "1.5", cellValue(t, f, sheetRetrieverEval, "Verbosity", 2))
}

func TestEvaluateWorkbookMarksIncompleteRows(t *testing.T) {
	b, brainID := testBatchEvaluator(t)
	workbook := evalWorkbook(t, [][2]string{
		{"capital of Atlantis", "Orichalcum"},
		{"question without truth", ""},
	})

	out, err := b.EvaluateWorkbook(context.Background(), brainID, nil, workbook)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.NotEqual(t, skippedRowMarker, cellValue(t, f, sheetLLMEval, "LLM Response", 2))
	assert.Equal(t, skippedRowMarker, cellValue(t, f, sheetLLMEval, "LLM Response", 3))
	assert.Equal(t, skippedRowMarker, cellValue(t, f, sheetRetrieverEval, "Retriever Response", 3))
}

func TestEvaluateWorkbookRejectsMissingSheet(t *testing.T) {
	b, brainID := testBatchEvaluator(t)

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Question"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = b.EvaluateWorkbook(context.Background(), brainID, nil, buf.Bytes())
	require.Error(t, err)
}

func TestEvaluateWorkbookRejectsGarbage(t *testing.T) {
	b, brainID := testBatchEvaluator(t)

	_, err := b.EvaluateWorkbook(context.Background(), brainID, nil, []byte("not a workbook"))
	require.Error(t, err)
}
