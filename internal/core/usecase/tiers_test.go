package usecase

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
)

type embedderFake struct {
	vector []float32
	err    error
}

func (f embedderFake) Embed(context.Context, []string) ([][]float32, error) { return nil, nil }
func (f embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	return f.vector, f.err
}

type vectorIndexFake struct {
	neighbor domain.Neighbor
	err      error
}

func (f vectorIndexFake) Add(context.Context, [][]float32) error { return nil }
func (f vectorIndexFake) Nearest(context.Context, []float32) (domain.Neighbor, error) {
	return f.neighbor, f.err
}
func (f vectorIndexFake) Len() int { return 1 }

func TestDistanceToScore(t *testing.T) {
	cases := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{2.5, 0.75},
		{10, 0},
		{42, 0},
	}
	for _, tc := range cases {
		if got := DistanceToScore(tc.distance, 10); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("DistanceToScore(%v) = %v, want %v", tc.distance, got, tc.want)
		}
	}
}

func TestSemanticTierScoresNearestEntry(t *testing.T) {
	corpus := domain.NewCorpus([]domain.QAEntry{
		{Question: "q0", Answer: "a0"},
		{Question: "q1", Answer: "a1", Category: "Fees"},
	})
	tier := NewSemanticTier(corpus, embedderFake{vector: []float32{1}}, vectorIndexFake{neighbor: domain.Neighbor{Index: 1, Distance: 3}}, 10, 0)

	outcome := tier.Attempt(context.Background(), "q")
	if outcome.Err != nil || outcome.Candidate == nil {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if outcome.Candidate.Answer != "a1" || outcome.Candidate.Category != "Fees" {
		t.Fatalf("unexpected candidate %+v", outcome.Candidate)
	}
	if math.Abs(outcome.Candidate.Score-0.7) > 1e-9 {
		t.Fatalf("expected score 0.7, got %v", outcome.Candidate.Score)
	}
}

func TestSemanticTierEmbedFailureIsTemporary(t *testing.T) {
	corpus := domain.NewCorpus([]domain.QAEntry{{Question: "q", Answer: "a"}})
	tier := NewSemanticTier(corpus, embedderFake{err: errors.New("down")}, vectorIndexFake{}, 10, 0)

	outcome := tier.Attempt(context.Background(), "q")
	if outcome.Candidate != nil || !domain.IsKind(outcome.Err, domain.ErrTemporary) {
		t.Fatalf("expected temporary failure, got %+v", outcome)
	}
}

func TestGenerationOutcomeOK(t *testing.T) {
	if (GenerationOutcome{Text: ""}).OK() {
		t.Fatalf("empty text must not be OK")
	}
	if (GenerationOutcome{Text: "x", Err: errors.New("e")}).OK() {
		t.Fatalf("error must not be OK")
	}
	if !(GenerationOutcome{Text: "x"}).OK() {
		t.Fatalf("expected OK")
	}
}
