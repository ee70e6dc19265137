// Package handlers exposes the HTTP API: brain management, file ingestion,
// retrieval-augmented answering, and evaluation.
package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dev.helix.brainbox/internal/apperrors"
	"dev.helix.brainbox/internal/catalog"
	"dev.helix.brainbox/internal/ingest"
	"dev.helix.brainbox/internal/rag"
)

// maxUploadBytes caps one uploaded file.
const maxUploadBytes = 64 << 20

// Envelope is the uniform response body.
type Envelope struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// Handler wires the HTTP surface to the service components.
type Handler struct {
	catalog      *catalog.Catalog
	pipeline     *ingest.Pipeline
	orchestrator *rag.Orchestrator
	evaluator    *rag.Evaluator
	batchEval    *rag.BatchEvaluator
	logger       *logrus.Logger
}

// New creates the handler set.
func New(cat *catalog.Catalog, pipeline *ingest.Pipeline, orchestrator *rag.Orchestrator, evaluator *rag.Evaluator, batchEval *rag.BatchEvaluator, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		catalog:      cat,
		pipeline:     pipeline,
		orchestrator: orchestrator,
		evaluator:    evaluator,
		batchEval:    batchEval,
		logger:       logger,
	}
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{
		Success:    status < 400,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		// Internals stay in the logs.
		detail = "internal server error"
	}
	c.JSON(status, Envelope{
		Success:    false,
		StatusCode: status,
		Message:    http.StatusText(status),
		Detail:     detail,
	})
}

func statusFor(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindAlreadyExists:
		return http.StatusConflict
	case apperrors.KindInvalid:
		return http.StatusBadRequest
	case apperrors.KindUnsupported:
		return http.StatusUnprocessableEntity
	case apperrors.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Root is the API banner.
func (h *Handler) Root(c *gin.Context) {
	respond(c, http.StatusOK, "BrainBox API", gin.H{"service": "brainbox"})
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	respond(c, http.StatusOK, "ok", gin.H{"status": "healthy"})
}

// CreateBrain allocates a new brain from the form field brain_name.
func (h *Handler) CreateBrain(c *gin.Context) {
	brainName := strings.TrimSpace(c.PostForm("brain_name"))
	if brainName == "" {
		respondError(c, apperrors.E(apperrors.KindInvalid, "brain_name is required"))
		return
	}

	brainID, err := h.catalog.CreateBrain(c.Request.Context(), brainName)
	if err != nil {
		h.logger.WithField("brain_name", brainName).WithError(err).Error("Brain creation failed")
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, fmt.Sprintf("brain %q created", brainName), gin.H{"brain_id": brainID})
}

// ListBrains enumerates all brains.
func (h *Handler) ListBrains(c *gin.Context) {
	brains, err := h.catalog.ListBrains(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Brain listing failed")
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "brains listed", brains)
}

// Upload ingests one or more PDF files into a brain.
func (h *Handler) Upload(c *gin.Context) {
	brainID, ok := h.resolveBrain(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, apperrors.Wrap(apperrors.KindInvalid, "invalid multipart form", err))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		respondError(c, apperrors.E(apperrors.KindInvalid, "no files uploaded"))
		return
	}

	results := make([]ingest.Result, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxUploadBytes {
			results = append(results, ingest.Result{
				Message: fmt.Sprintf("file %q exceeds the size limit", fh.Filename),
			})
			continue
		}

		data, err := readUpload(fh.Open())
		if err != nil {
			respondError(c, apperrors.Wrap(apperrors.KindInvalid, fmt.Sprintf("failed to read %q", fh.Filename), err))
			return
		}

		res, err := h.pipeline.Ingest(c.Request.Context(), brainID, fh.Filename, data)
		if err != nil {
			// One bad file never aborts the batch.
			h.logger.WithField("file_name", fh.Filename).WithError(err).Error("Ingestion failed")
			results = append(results, ingest.Result{
				Message: fmt.Sprintf("failed to ingest %q: %s", fh.Filename, err),
			})
			continue
		}
		results = append(results, res)
	}
	respond(c, http.StatusOK, "upload processed", results)
}

// ListFiles lists the ingested files of a brain.
func (h *Handler) ListFiles(c *gin.Context) {
	brainID, ok := h.resolveBrain(c)
	if !ok {
		return
	}

	files, err := h.catalog.ListFiles(c.Request.Context(), brainID)
	if err != nil {
		h.logger.WithField("brain_id", brainID).WithError(err).Error("File listing failed")
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "files listed", files)
}

// AnswerStrategy builds the handler for one retrieval strategy endpoint.
func (h *Handler) AnswerStrategy(strategy rag.Strategy) gin.HandlerFunc {
	return func(c *gin.Context) {
		brainID, ok := h.resolveBrain(c)
		if !ok {
			return
		}
		req, ok := bindQuestion(c)
		if !ok {
			return
		}

		answer, err := h.orchestrator.Answer(c.Request.Context(), brainID, strategy, req)
		if err != nil {
			h.logger.WithFields(logrus.Fields{
				"brain_id": brainID,
				"strategy": strategy,
			}).WithError(err).Error("Answering failed")
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, "answer generated", gin.H{
			fmt.Sprintf("%s_rag_response", strategy):       answer.Response,
			fmt.Sprintf("%s_retriever_response", strategy): answer.RetrievedContext,
		})
	}
}

// AnswerAll fans out over every strategy and reports per-strategy outcomes.
func (h *Handler) AnswerAll(c *gin.Context) {
	brainID, ok := h.resolveBrain(c)
	if !ok {
		return
	}
	req, ok := bindQuestion(c)
	if !ok {
		return
	}

	results := h.orchestrator.AnswerAll(c.Request.Context(), brainID, req)

	data := gin.H{}
	for strategy, res := range results {
		if res.Err != nil {
			data[string(strategy)] = gin.H{"error": res.Err.Error(), "strategy": string(strategy)}
			continue
		}
		data[string(strategy)] = gin.H{
			fmt.Sprintf("%s_rag_response", strategy):       res.Answer.Response,
			fmt.Sprintf("%s_retriever_response", strategy): res.Answer.RetrievedContext,
		}
	}
	respond(c, http.StatusOK, "all strategies answered", data)
}

type evaluateRequest struct {
	Context     string `json:"context"`
	Query       string `json:"query" binding:"required"`
	Response    string `json:"response" binding:"required"`
	GroundTruth string `json:"ground_truth"`
}

// EvaluateResponse scores one answer with the reward model.
func (h *Handler) EvaluateResponse(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(apperrors.KindInvalid, "invalid evaluation request", err))
		return
	}

	eval, err := h.evaluator.Evaluate(c.Request.Context(), req.Context, req.Query, req.Response, req.GroundTruth)
	if err != nil {
		h.logger.WithError(err).Error("Evaluation failed")
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "response evaluated", eval)
}

// EvaluateFile runs the workbook evaluation and streams the updated file.
func (h *Handler) EvaluateFile(c *gin.Context) {
	brainRef := strings.TrimSpace(c.PostForm("brain_id"))
	if brainRef == "" {
		respondError(c, apperrors.E(apperrors.KindInvalid, "brain_id is required"))
		return
	}
	brainID, err := h.catalog.ResolveBrain(c.Request.Context(), brainRef)
	if err != nil {
		respondError(c, err)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, apperrors.Wrap(apperrors.KindInvalid, "workbook upload is required", err))
		return
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".xlsx") {
		respondError(c, apperrors.E(apperrors.KindInvalid, "only .xlsx files are supported"))
		return
	}

	data, err := readUpload(fh.Open())
	if err != nil {
		respondError(c, apperrors.Wrap(apperrors.KindInvalid, "failed to read workbook", err))
		return
	}

	pdfIDs := c.PostFormArray("file_ids")
	out, err := h.batchEval.EvaluateWorkbook(c.Request.Context(), brainID, pdfIDs, data)
	if err != nil {
		h.logger.WithField("brain_id", brainID).WithError(err).Error("Workbook evaluation failed")
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="evaluated_test_set.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", out)
}

func (h *Handler) resolveBrain(c *gin.Context) (string, bool) {
	brainID, err := h.catalog.ResolveBrain(c.Request.Context(), c.Param("brain_id"))
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return brainID, true
}

func bindQuestion(c *gin.Context) (rag.Request, bool) {
	var req rag.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(apperrors.KindInvalid, "invalid question payload", err))
		return rag.Request{}, false
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(c, apperrors.E(apperrors.KindInvalid, "query is required"))
		return rag.Request{}, false
	}
	return req, true
}

func readUpload(f io.ReadCloser, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
}
