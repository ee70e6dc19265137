package rag

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"dev.helix.brainbox/internal/apperrors"
)

// Workbook sheet names the batch evaluator operates on.
const (
	sheetLLMEval       = "LLM Eval"
	sheetRetrieverEval = "Retriever Eval"
)

// skippedRowMarker fills response cells of rows missing a question or
// ground truth, or whose evaluation failed.
const skippedRowMarker = "Skipped - Missing Data"

// BatchEvaluator runs hybrid question answering and reward scoring over an
// uploaded evaluation workbook.
type BatchEvaluator struct {
	orchestrator *Orchestrator
	evaluator    *Evaluator
	logger       *logrus.Logger
}

// NewBatchEvaluator builds a batch evaluator.
func NewBatchEvaluator(orchestrator *Orchestrator, evaluator *Evaluator, logger *logrus.Logger) *BatchEvaluator {
	if logger == nil {
		logger = logrus.New()
	}
	return &BatchEvaluator{orchestrator: orchestrator, evaluator: evaluator, logger: logger}
}

// EvaluateWorkbook answers every question in the "LLM Eval" sheet with the
// hybrid strategy, scores answer and context with the reward model, and
// fills the metric columns of both sheets. Rows with missing data are marked
// and skipped; the updated workbook is returned as bytes.
func (b *BatchEvaluator) EvaluateWorkbook(ctx context.Context, brainID string, pdfIDs []string, workbook []byte) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(workbook))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalid, "failed to open workbook", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheetLLMEval)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalid,
			fmt.Sprintf("workbook is missing the %q sheet", sheetLLMEval), err)
	}
	if _, err := f.GetRows(sheetRetrieverEval); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalid,
			fmt.Sprintf("workbook is missing the %q sheet", sheetRetrieverEval), err)
	}
	if len(rows) < 2 {
		return nil, apperrors.E(apperrors.KindInvalid, "workbook has no evaluation rows")
	}

	header := rows[0]
	questionCol := findColumn(header, "Question")
	truthCol := findColumn(header, "Ground Truth")
	if questionCol < 0 || truthCol < 0 {
		return nil, apperrors.E(apperrors.KindInvalid, "workbook is missing Question or Ground Truth columns")
	}

	selected := make([]SelectedPDF, 0, len(pdfIDs))
	for _, id := range pdfIDs {
		selected = append(selected, SelectedPDF{FileID: id})
	}

	for i := 1; i < len(rows); i++ {
		rowNo := i + 1
		question := cellAt(rows[i], questionCol)
		groundTruth := cellAt(rows[i], truthCol)
		if question == "" || groundTruth == "" {
			b.markSkipped(f, rowNo)
			continue
		}

		answer, err := b.orchestrator.AnswerHybrid(ctx, brainID, Request{
			Query:        question,
			SelectedPDFs: selected,
		})
		if err != nil {
			b.logger.WithField("row", rowNo).WithError(err).Warn("Row answering failed, skipping")
			b.markSkipped(f, rowNo)
			continue
		}

		eval, err := b.evaluator.Evaluate(ctx, answer.RetrievedContext, question, answer.Response, groundTruth)
		if err != nil {
			b.logger.WithField("row", rowNo).WithError(err).Warn("Row evaluation failed, skipping")
			b.markSkipped(f, rowNo)
			continue
		}

		b.fillRow(f, sheetLLMEval, rowNo, "LLM Response", answer.Response, ParseScores(eval.LLMScore))
		b.fillRow(f, sheetRetrieverEval, rowNo, "Retriever Response", answer.RetrievedContext, ParseScores(eval.RetrieverScore))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// fillRow writes the response column and the five metric columns of one row.
func (b *BatchEvaluator) fillRow(f *excelize.File, sheet string, rowNo int, responseHeader, response string, scores map[string]float64) {
	b.setByHeader(f, sheet, rowNo, responseHeader, response)
	for _, metric := range ScoreMetrics {
		header := strings.ToUpper(metric[:1]) + metric[1:]
		b.setByHeader(f, sheet, rowNo, header, scores[metric])
	}
}

func (b *BatchEvaluator) markSkipped(f *excelize.File, rowNo int) {
	b.setByHeader(f, sheetLLMEval, rowNo, "LLM Response", skippedRowMarker)
	b.setByHeader(f, sheetRetrieverEval, rowNo, "Retriever Response", skippedRowMarker)
}

// setByHeader writes value into the column titled header, appending the
// column to the sheet when absent.
func (b *BatchEvaluator) setByHeader(f *excelize.File, sheet string, rowNo int, header string, value any) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return
	}
	var head []string
	if len(rows) > 0 {
		head = rows[0]
	}

	col := findColumn(head, header)
	if col < 0 {
		col = len(head)
		name, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return
		}
		if err := f.SetCellValue(sheet, name, header); err != nil {
			return
		}
	}

	cell, err := excelize.CoordinatesToCellName(col+1, rowNo)
	if err != nil {
		return
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		b.logger.WithFields(logrus.Fields{
			"sheet": sheet,
			"cell":  cell,
		}).WithError(err).Warn("Failed to write workbook cell")
	}
}

func findColumn(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
