package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
	"github.com/kirillkom/faq-assistant/internal/core/ports"
)

const DefaultSimilarityThreshold = 0.35

type CascadeConfig struct {
	Threshold      float64
	Capabilities   domain.Capabilities
	FallbackAnswer string
}

// CascadeUseCase runs the tiers in fixed order and stops at the first one
// whose candidate clears the threshold. It holds no mutable state after
// construction.
type CascadeUseCase struct {
	threshold      float64
	capabilities   domain.Capabilities
	fallbackAnswer string
	pipeline       []RetrievalTier
	observer       ports.CascadeObserver
	logger         *slog.Logger
}

// NewCascadeUseCase builds the pipeline from the capability flags. semantic and
// generative may be nil when their capability is off.
func NewCascadeUseCase(
	cfg CascadeConfig,
	lexical RetrievalTier,
	semantic RetrievalTier,
	generative RetrievalTier,
	observer ports.CascadeObserver,
) *CascadeUseCase {
	caps := cfg.Capabilities
	pipeline := []RetrievalTier{lexical}
	if caps.SemanticEnabled && semantic != nil {
		pipeline = append(pipeline, semantic)
	} else {
		caps.SemanticEnabled = false
	}
	if caps.GenerativeEnabled && generative != nil {
		pipeline = append(pipeline, generative)
	} else {
		caps.GenerativeEnabled = false
	}

	fallback := cfg.FallbackAnswer
	if fallback == "" {
		fallback = domain.FAQFallbackAnswer
	}

	return &CascadeUseCase{
		threshold:      cfg.Threshold,
		capabilities:   caps,
		fallbackAnswer: fallback,
		pipeline:       pipeline,
		observer:       observer,
		logger:         slog.Default().With("component", "cascade"),
	}
}

func (uc *CascadeUseCase) Capabilities() domain.Capabilities {
	return uc.capabilities
}

func (uc *CascadeUseCase) Threshold() float64 {
	return uc.threshold
}

func (uc *CascadeUseCase) Ask(ctx context.Context, query string) (*domain.RetrievalResult, error) {
	return uc.AskWithFallback(ctx, query, uc.fallbackAnswer)
}

// AskWithFallback is Ask with a caller-chosen NoAnswer text.
func (uc *CascadeUseCase) AskWithFallback(ctx context.Context, query, fallbackAnswer string) (*domain.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("query is empty"))
	}

	start := time.Now()
	var diagnostic *domain.RetrievalResult

	for _, tier := range uc.pipeline {
		source := tier.Source()
		outcome := tier.Attempt(ctx, query)

		if source == domain.SourceLexical && diagnostic == nil {
			diagnostic = outcome.Candidate
		}

		switch {
		case outcome.Err != nil:
			uc.observeTier(source, "failed")
			uc.logger.Warn("cascade_tier_failed", "tier", source, "error", outcome.Err)
			continue
		case outcome.Candidate == nil:
			uc.observeTier(source, "miss")
			continue
		case outcome.Scored && outcome.Candidate.Score < uc.threshold:
			uc.observeTier(source, "miss")
			uc.logger.Debug("cascade_tier_miss", "tier", source, "score", outcome.Candidate.Score, "threshold", uc.threshold)
			continue
		}

		uc.observeTier(source, "hit")
		result := *outcome.Candidate
		uc.observeAnswer(result, start)
		return &result, nil
	}

	result := uc.noAnswer(diagnostic, fallbackAnswer)
	uc.observeAnswer(*result, start)
	return result, nil
}

// noAnswer keeps the lexical best guess for diagnostics even though it was
// below the threshold.
func (uc *CascadeUseCase) noAnswer(diagnostic *domain.RetrievalResult, fallbackAnswer string) *domain.RetrievalResult {
	if fallbackAnswer == "" {
		fallbackAnswer = uc.fallbackAnswer
	}
	result := &domain.RetrievalResult{
		Source:   domain.SourceNone,
		Answer:   fallbackAnswer,
		Category: domain.DefaultCategory,
	}
	if diagnostic != nil {
		result.Score = diagnostic.Score
		result.MatchedQuestion = diagnostic.MatchedQuestion
		if diagnostic.Category != "" {
			result.Category = diagnostic.Category
		}
	}
	return result
}

func (uc *CascadeUseCase) observeTier(source domain.Source, outcome string) {
	if uc.observer != nil {
		uc.observer.ObserveTier(source, outcome)
	}
}

func (uc *CascadeUseCase) observeAnswer(result domain.RetrievalResult, start time.Time) {
	if uc.observer != nil {
		uc.observer.ObserveAnswer(result.Source, result.Score, time.Since(start).Seconds())
	}
}
