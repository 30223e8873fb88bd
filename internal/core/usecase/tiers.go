package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
	"github.com/kirillkom/faq-assistant/internal/core/ports"
)

// TierOutcome is what a tier hands back to the cascade. Candidate is nil when
// the tier produced nothing; Scored candidates are compared to the threshold,
// unscored ones are accepted as-is. Err is informational only.
type TierOutcome struct {
	Candidate *domain.RetrievalResult
	Scored    bool
	Err       error
}

// RetrievalTier is one step of the cascade.
type RetrievalTier interface {
	Source() domain.Source
	Attempt(ctx context.Context, query string) TierOutcome
}

type LexicalTier struct {
	corpus *domain.Corpus
	index  ports.LexicalIndex
}

func NewLexicalTier(corpus *domain.Corpus, index ports.LexicalIndex) *LexicalTier {
	return &LexicalTier{corpus: corpus, index: index}
}

func (t *LexicalTier) Source() domain.Source { return domain.SourceLexical }

func (t *LexicalTier) Attempt(_ context.Context, query string) TierOutcome {
	match, ok := t.index.Score(query)
	if !ok {
		return TierOutcome{Scored: true}
	}
	return TierOutcome{Candidate: corpusResult(t.corpus, domain.SourceLexical, match), Scored: true}
}

type SemanticTier struct {
	corpus   *domain.Corpus
	embedder ports.Embedder
	vectors  ports.VectorIndex
	scale    float64
	timeout  time.Duration
}

func NewSemanticTier(corpus *domain.Corpus, embedder ports.Embedder, vectors ports.VectorIndex, distanceScale float64, timeout time.Duration) *SemanticTier {
	if distanceScale <= 0 {
		distanceScale = 10.0
	}
	return &SemanticTier{
		corpus:   corpus,
		embedder: embedder,
		vectors:  vectors,
		scale:    distanceScale,
		timeout:  timeout,
	}
}

func (t *SemanticTier) Source() domain.Source { return domain.SourceSemantic }

func (t *SemanticTier) Attempt(ctx context.Context, query string) TierOutcome {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	queryVector, err := t.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return TierOutcome{Scored: true, Err: domain.WrapError(domain.ErrTemporary, "embed query", err)}
	}
	neighbor, err := t.vectors.Nearest(ctx, queryVector)
	if err != nil {
		return TierOutcome{Scored: true, Err: domain.WrapError(domain.ErrTemporary, "nearest neighbor", err)}
	}
	if neighbor.Index < 0 || neighbor.Index >= t.corpus.Len() {
		return TierOutcome{Scored: true, Err: errors.New("nearest neighbor outside corpus")}
	}

	match := domain.Match{Index: neighbor.Index, Score: DistanceToScore(neighbor.Distance, t.scale)}
	return TierOutcome{Candidate: corpusResult(t.corpus, domain.SourceSemantic, match), Scored: true}
}

// DistanceToScore maps a squared L2 distance onto [0,1], decreasing with distance.
func DistanceToScore(distance, scale float64) float64 {
	if math.IsNaN(distance) || scale <= 0 {
		return 0
	}
	return math.Min(1, math.Max(0, 1-distance/scale))
}

// GenerationOutcome is the typed result of the generative call.
type GenerationOutcome struct {
	Text string
	Err  error
}

func (o GenerationOutcome) OK() bool {
	return o.Err == nil && o.Text != ""
}

type GenerativeTier struct {
	generator ports.TextGenerator
	timeout   time.Duration
}

func NewGenerativeTier(generator ports.TextGenerator, timeout time.Duration) *GenerativeTier {
	return &GenerativeTier{generator: generator, timeout: timeout}
}

func (t *GenerativeTier) Source() domain.Source { return domain.SourceGenerative }

func (t *GenerativeTier) Generate(ctx context.Context, query string) GenerationOutcome {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	text, err := t.generator.Generate(ctx, query)
	if err != nil {
		return GenerationOutcome{Err: err}
	}
	if text == "" {
		return GenerationOutcome{Err: domain.ErrEmptyGeneration}
	}
	return GenerationOutcome{Text: text}
}

func (t *GenerativeTier) Attempt(ctx context.Context, query string) TierOutcome {
	outcome := t.Generate(ctx, query)
	if !outcome.OK() {
		return TierOutcome{Err: outcome.Err}
	}
	return TierOutcome{Candidate: &domain.RetrievalResult{
		Source:   domain.SourceGenerative,
		Score:    0,
		Answer:   outcome.Text,
		Category: domain.DefaultCategory,
	}}
}

func corpusResult(corpus *domain.Corpus, source domain.Source, match domain.Match) *domain.RetrievalResult {
	entry := corpus.At(match.Index)
	question := entry.Question
	return &domain.RetrievalResult{
		Source:          source,
		Score:           match.Score,
		MatchedQuestion: &question,
		Answer:          entry.Answer,
		Category:        entry.Category,
	}
}
