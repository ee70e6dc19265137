package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"dev.helix.brainbox/internal/llm"
)

// maxEvalContextTokens caps how much retrieved context is fed to the reward
// model, counted in whitespace-separated tokens.
const maxEvalContextTokens = 1400

// Metric column names of the reward score string.
var ScoreMetrics = []string{"helpfulness", "correctness", "coherence", "complexity", "verbosity"}

// Evaluation holds the raw reward-model verdicts for one answer.
type Evaluation struct {
	LLMScore       string `json:"llm_eval"`
	RetrieverScore string `json:"retriever_eval"`
	GroundTruth    string `json:"ground_truth"`
}

// QAPair is one generated question with its expected answer.
type QAPair struct {
	Question    string `json:"question"`
	GroundTruth string `json:"ground_truth"`
}

// Evaluator scores answers and retrieved context with a reward model. The
// instruct model synthesizes ground truths when the caller has none.
type Evaluator struct {
	rewardLLM   llm.Provider
	instructLLM llm.Provider
	logger      *logrus.Logger
}

// NewEvaluator builds an evaluator over the reward and instruct models.
func NewEvaluator(rewardLLM, instructLLM llm.Provider, logger *logrus.Logger) *Evaluator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Evaluator{rewardLLM: rewardLLM, instructLLM: instructLLM, logger: logger}
}

// Evaluate scores both the generated answer and the retrieved context. An
// empty groundTruth is synthesized from the question first. The returned
// scores are the reward model's raw content strings.
func (e *Evaluator) Evaluate(ctx context.Context, retrievedContext, question, answer, groundTruth string) (Evaluation, error) {
	if groundTruth == "" {
		synthesized, err := e.instructLLM.Complete(ctx, llm.UserMessage(GroundTruthPrompt(question)))
		if err != nil {
			return Evaluation{}, fmt.Errorf("failed to synthesize ground truth: %w", err)
		}
		groundTruth = stripAnswerLabel(synthesized)
	}

	truncated := TruncateTokens(retrievedContext, maxEvalContextTokens)

	llmScore, err := e.rewardLLM.Complete(ctx, llm.Request{Messages: []llm.Message{
		{Role: llm.RoleUser, Content: llmEvalPrompt(question, truncated, groundTruth)},
		{Role: llm.RoleAssistant, Content: answer},
	}})
	if err != nil {
		return Evaluation{}, fmt.Errorf("answer evaluation failed: %w", err)
	}

	retrieverScore, err := e.rewardLLM.Complete(ctx, llm.Request{Messages: []llm.Message{
		{Role: llm.RoleUser, Content: retrieverEvalPrompt(question, groundTruth)},
		{Role: llm.RoleAssistant, Content: truncated},
	}})
	if err != nil {
		return Evaluation{}, fmt.Errorf("retriever evaluation failed: %w", err)
	}

	return Evaluation{
		LLMScore:       llmScore,
		RetrieverScore: retrieverScore,
		GroundTruth:    groundTruth,
	}, nil
}

// GenerateTestSet asks the instruct model for Q/A pairs over each passage
// and parses the labeled lines. Passages beyond the first five are ignored.
func (e *Evaluator) GenerateTestSet(ctx context.Context, passages []string) ([]QAPair, error) {
	if len(passages) > 5 {
		passages = passages[:5]
	}

	var pairs []QAPair
	for _, passage := range passages {
		response, err := e.instructLLM.Complete(ctx, llm.UserMessage(TestSetPrompt(passage)))
		if err != nil {
			return nil, fmt.Errorf("failed to generate test set: %w", err)
		}
		pairs = append(pairs, parseQAPairs(response)...)
	}
	return pairs, nil
}

// ParseScores parses "helpfulness:3.5,correctness:4,..." into a metric map.
// Values are clamped to [0, 4]; malformed entries are dropped.
func ParseScores(s string) map[string]float64 {
	scores := make(map[string]float64)
	for _, item := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(item, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			continue
		}
		if v < 0 {
			v = 0
		}
		if v > 4 {
			v = 4
		}
		scores[key] = v
	}
	return scores
}

// TruncateTokens keeps the first n whitespace-separated tokens.
func TruncateTokens(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) <= n {
		return s
	}
	return strings.Join(fields[:n], " ")
}

func parseQAPairs(response string) []QAPair {
	var questions, answers []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Q:"):
			questions = append(questions, strings.TrimSpace(strings.TrimPrefix(line, "Q:")))
		case strings.HasPrefix(line, "A:"):
			answers = append(answers, strings.TrimSpace(strings.TrimPrefix(line, "A:")))
		}
	}

	n := len(questions)
	if len(answers) < n {
		n = len(answers)
	}
	pairs := make([]QAPair, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, QAPair{Question: questions[i], GroundTruth: answers[i]})
	}
	return pairs
}

func stripAnswerLabel(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "A:"); idx >= 0 {
		return strings.TrimSpace(s[idx+2:])
	}
	return s
}
