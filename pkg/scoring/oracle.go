// Package scoring wraps the generative model boundary as a compatibility
// scoring oracle with a strict parse-or-fallback contract.
package scoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pairlink-inc/pairlink-engine/pkg/llm"
	"github.com/pairlink-inc/pairlink-engine/pkg/models"
	"github.com/pairlink-inc/pairlink-engine/pkg/prompts"
	"github.com/pairlink-inc/pairlink-engine/pkg/retry"
)

// Oracle converts paired responses into a structured analysis.
// Implementations must be treated as unreliable; callers apply the
// deterministic fallback on any error.
type Oracle interface {
	Analyze(ctx context.Context, paired []models.PairedResponse, questionText map[string]string) (*models.Analysis, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, paired []models.PairedResponse, questionText map[string]string) (*models.Analysis, error)

// Analyze implements Oracle.
func (f OracleFunc) Analyze(ctx context.Context, paired []models.PairedResponse, questionText map[string]string) (*models.Analysis, error) {
	return f(ctx, paired, questionText)
}

// LLMOracle implements Oracle on top of a generative model client.
// Every call is bounded by a timeout; transient provider failures are retried
// with backoff and repeated failures trip the circuit breaker.
type LLMOracle struct {
	client  llm.Client
	breaker *llm.CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

// NewLLMOracle creates a new model-backed oracle.
func NewLLMOracle(client llm.Client, breaker *llm.CircuitBreaker, timeout time.Duration, logger *zap.Logger) *LLMOracle {
	return &LLMOracle{
		client:  client,
		breaker: breaker,
		timeout: timeout,
		logger:  logger.Named("oracle"),
	}
}

var _ Oracle = (*LLMOracle)(nil)

// oracleAnalysis is the expected response schema. Score is a pointer so an
// absent score can be distinguished from zero.
type oracleAnalysis struct {
	Score       *float64            `json:"score"`
	Strengths   []models.Insight    `json:"strengths"`
	Weaknesses  []models.Insight    `json:"weaknesses"`
	Suggestions []models.Suggestion `json:"suggestions"`
}

// Analyze sends the paired responses to the model and strictly parses the
// returned analysis. Any schema violation is reported as an error so the
// caller can substitute the deterministic fallback; a missing or out-of-range
// score alone is repaired with the neutral default rather than failing the
// whole call.
func (o *LLMOracle) Analyze(ctx context.Context, paired []models.PairedResponse, questionText map[string]string) (*models.Analysis, error) {
	if allowed, err := o.breaker.Allow(); !allowed {
		return nil, fmt.Errorf("circuit breaker: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prompt := prompts.BuildCompatibilityAnalysisPrompt(paired, questionText)

	retryConfig := &retry.Config{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}

	// Returning nil from the closure stops retry.Do, so a non-retryable
	// classification aborts immediately and surfaces via permanentErr.
	var content string
	var permanentErr error
	err := retry.Do(ctx, retryConfig, func() error {
		var callErr error
		content, callErr = o.client.GenerateResponse(ctx, prompt, prompts.CompatibilityAnalysisSystemMessage, 0.4)
		if callErr != nil {
			classified := llm.ClassifyError(callErr)
			if classified.Retryable {
				o.logger.Warn("oracle call failed, retrying",
					zap.String("error_type", string(classified.Type)),
					zap.Error(callErr))
				return callErr
			}
			o.logger.Error("oracle call failed with non-retryable error",
				zap.String("error_type", string(classified.Type)),
				zap.Error(callErr))
			permanentErr = callErr
			return nil
		}
		return nil
	})
	if err == nil {
		err = permanentErr
	}
	if err != nil {
		o.breaker.RecordFailure()
		return nil, fmt.Errorf("oracle call failed: %w", err)
	}

	o.breaker.RecordSuccess()

	parsed, err := llm.ParseJSONResponse[oracleAnalysis](content)
	if err != nil {
		o.logger.Error("failed to parse oracle response",
			zap.String("response_preview", truncate(content, 200)),
			zap.Error(err))
		return nil, fmt.Errorf("parse oracle response: %w", err)
	}

	if len(parsed.Strengths) == 0 && len(parsed.Weaknesses) == 0 && len(parsed.Suggestions) == 0 {
		return nil, fmt.Errorf("oracle response missing all analysis sections")
	}

	analysis := &models.Analysis{
		Score:       NormalizeScore(parsed.Score),
		Strengths:   parsed.Strengths,
		Weaknesses:  parsed.Weaknesses,
		Suggestions: parsed.Suggestions,
	}

	o.logger.Debug("oracle analysis complete",
		zap.Int("score", analysis.Score),
		zap.Int("paired_questions", len(paired)))

	return analysis, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
