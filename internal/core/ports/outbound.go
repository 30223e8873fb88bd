package ports

import (
	"context"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
)

// CorpusSource reads raw dataset records. Filtering of incomplete records is
// done by domain.NewCorpus.
type CorpusSource interface {
	Load(ctx context.Context) ([]domain.QAEntry, error)
}

// LexicalIndex scores a query against every corpus question. ok is false for
// an empty query or an empty corpus.
type LexicalIndex interface {
	Score(query string) (match domain.Match, ok bool)
	Len() int
}

// Embedder builds dense vectors for corpus questions and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores corpus-aligned vectors and answers top-1 lookups.
type VectorIndex interface {
	Add(ctx context.Context, vectors [][]float32) error
	Nearest(ctx context.Context, query []float32) (domain.Neighbor, error)
	Len() int
}

// TextGenerator produces a free-form answer for questions the corpus can't cover.
type TextGenerator interface {
	Generate(ctx context.Context, query string) (string, error)
}

// CascadeObserver receives per-tier outcomes. Implementations must be safe
// for concurrent use.
type CascadeObserver interface {
	ObserveTier(source domain.Source, outcome string)
	ObserveAnswer(source domain.Source, score float64, durationSeconds float64)
}
