package rag

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"dev.helix.brainbox/internal/llm"
	"dev.helix.brainbox/internal/observability"
)

// Orchestrator composes retrieval with answer generation.
type Orchestrator struct {
	retriever *Retriever
	answerLLM llm.Provider
	metrics   *observability.Metrics
	logger    *logrus.Logger
}

// NewOrchestrator builds an orchestrator over the retriever and the
// answering model.
func NewOrchestrator(retriever *Retriever, answerLLM llm.Provider, metrics *observability.Metrics, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		retriever: retriever,
		answerLLM: answerLLM,
		metrics:   metrics,
		logger:    logger,
	}
}

// Answer runs one strategy end to end. When retrieval yields nothing the
// model is not called: the response is the fixed no-answer message with an
// empty retrieved context.
func (o *Orchestrator) Answer(ctx context.Context, brainID string, strategy Strategy, req Request) (Answer, error) {
	docs, err := o.retriever.Retrieve(ctx, brainID, strategy, req.Query, req.PDFIDs())
	if err != nil {
		return Answer{}, fmt.Errorf("%s retrieval failed: %w", strategy, err)
	}

	combined := CombineContext(docs)
	if combined == "" {
		o.logger.WithFields(logrus.Fields{
			"brain_id": brainID,
			"strategy": strategy,
		}).Info("No context retrieved, returning fixed response")
		return Answer{
			Response:         NoAnswerMessage,
			ResponseStatus:   http.StatusOK,
			RetrievedContext: "",
		}, nil
	}

	response, err := o.answerLLM.Complete(ctx, llm.UserMessage(AnswerPrompt(req.Query, combined)))
	if err != nil {
		o.noteLLM("answer", "error")
		return Answer{}, fmt.Errorf("%s answer generation failed: %w", strategy, err)
	}
	o.noteLLM("answer", "ok")

	return Answer{
		Response:         response,
		ResponseStatus:   http.StatusOK,
		RetrievedContext: combined,
	}, nil
}

// AnswerHybrid answers with RRF-fused dense and sparse retrieval.
func (o *Orchestrator) AnswerHybrid(ctx context.Context, brainID string, req Request) (Answer, error) {
	return o.Answer(ctx, brainID, StrategyHybrid, req)
}

// AnswerDense answers with dense retrieval.
func (o *Orchestrator) AnswerDense(ctx context.Context, brainID string, req Request) (Answer, error) {
	return o.Answer(ctx, brainID, StrategyDense, req)
}

// AnswerSparse answers with sparse retrieval.
func (o *Orchestrator) AnswerSparse(ctx context.Context, brainID string, req Request) (Answer, error) {
	return o.Answer(ctx, brainID, StrategySparse, req)
}

// AnswerHyDE answers with hypothetical-document retrieval.
func (o *Orchestrator) AnswerHyDE(ctx context.Context, brainID string, req Request) (Answer, error) {
	return o.Answer(ctx, brainID, StrategyHyDE, req)
}

// AnswerAll runs every strategy concurrently and gathers all outcomes. A
// failing strategy does not cancel the others; its result carries the error.
func (o *Orchestrator) AnswerAll(ctx context.Context, brainID string, req Request) map[Strategy]StrategyResult {
	results := make([]StrategyResult, len(Strategies))

	var wg sync.WaitGroup
	for i, strategy := range Strategies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			answer, err := o.Answer(ctx, brainID, strategy, req)
			results[i] = StrategyResult{Strategy: strategy, Answer: answer, Err: err}
		}()
	}
	wg.Wait()

	out := make(map[Strategy]StrategyResult, len(results))
	for _, res := range results {
		if res.Err != nil {
			o.logger.WithFields(logrus.Fields{
				"brain_id": brainID,
				"strategy": res.Strategy,
			}).WithError(res.Err).Warn("Strategy failed during fan-out")
		}
		out[res.Strategy] = res
	}
	return out
}

func (o *Orchestrator) noteLLM(role, outcome string) {
	if o.metrics != nil {
		o.metrics.LLMCalls.WithLabelValues(role, outcome).Inc()
	}
}
