package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
	"github.com/kirillkom/faq-assistant/internal/infrastructure/lexical"
)

func passwordCorpus() *domain.Corpus {
	return domain.NewCorpus([]domain.QAEntry{
		{Question: "How do I reset my password?", Answer: "Visit the portal.", Category: "Accounts"},
	})
}

func lexicalTierFor(corpus *domain.Corpus) *LexicalTier {
	return NewLexicalTier(corpus, lexical.NewIndex(corpus.Questions()))
}

type scoredTierFake struct {
	source domain.Source
	score  float64
	err    error
	calls  int
}

func (f *scoredTierFake) Source() domain.Source { return f.source }
func (f *scoredTierFake) Attempt(context.Context, string) TierOutcome {
	f.calls++
	if f.err != nil {
		return TierOutcome{Scored: true, Err: f.err}
	}
	q := "semantic question"
	return TierOutcome{Scored: true, Candidate: &domain.RetrievalResult{
		Source: f.source, Score: f.score, MatchedQuestion: &q, Answer: "semantic answer", Category: "Semantic",
	}}
}

type generatorFake struct {
	text  string
	err   error
	calls int
}

func (f *generatorFake) Generate(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}

type observerFake struct {
	mu      sync.Mutex
	tiers   []string
	answers []domain.Source
}

func (f *observerFake) ObserveTier(source domain.Source, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tiers = append(f.tiers, string(source)+":"+outcome)
}

func (f *observerFake) ObserveAnswer(source domain.Source, _ float64, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, source)
}

func TestAskVerbatimQuestionAnswersFromLexicalTier(t *testing.T) {
	corpus := passwordCorpus()
	uc := NewCascadeUseCase(CascadeConfig{Threshold: 0.35}, lexicalTierFor(corpus), nil, nil, nil)

	res, err := uc.Ask(context.Background(), "How do I reset my password?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if res.Source != domain.SourceLexical {
		t.Fatalf("expected lexical source, got %s", res.Source)
	}
	if res.Score < 0.9999 {
		t.Fatalf("expected score ~1.0, got %v", res.Score)
	}
	if res.MatchedQuestion == nil || *res.MatchedQuestion != "How do I reset my password?" {
		t.Fatalf("unexpected matched question %v", res.MatchedQuestion)
	}
	if res.Answer != "Visit the portal." || res.Category != "Accounts" {
		t.Fatalf("unexpected answer %+v", res)
	}
}

func TestAskGibberishWithoutOptionalTiersReturnsNone(t *testing.T) {
	corpus := passwordCorpus()
	uc := NewCascadeUseCase(CascadeConfig{Threshold: 0.35}, lexicalTierFor(corpus), nil, nil, nil)

	res, err := uc.Ask(context.Background(), "xyz unrelated gibberish")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if res.Source != domain.SourceNone || res.Score != 0 {
		t.Fatalf("expected none with score 0, got %+v", res)
	}
	if res.MatchedQuestion == nil || *res.MatchedQuestion != "How do I reset my password?" {
		t.Fatalf("expected diagnostic matched question, got %v", res.MatchedQuestion)
	}
	if res.Answer != domain.FAQFallbackAnswer || res.Category != "Accounts" {
		t.Fatalf("unexpected fallback %+v", res)
	}
}

func TestAskEmptyQueryIsInvalidInput(t *testing.T) {
	uc := NewCascadeUseCase(CascadeConfig{Threshold: 0.35}, lexicalTierFor(passwordCorpus()), nil, nil, nil)
	_, err := uc.Ask(context.Background(), "   ")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAskThresholdIsInclusive(t *testing.T) {
	semantic := &scoredTierFake{source: domain.SourceSemantic, score: 0.5}
	uc := NewCascadeUseCase(
		CascadeConfig{Threshold: 0.5, Capabilities: domain.Capabilities{SemanticEnabled: true}},
		lexicalTierFor(passwordCorpus()), semantic, nil, nil,
	)

	res, err := uc.Ask(context.Background(), "gibberish")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if res.Source != domain.SourceSemantic {
		t.Fatalf("expected semantic tier at exact threshold, got %s", res.Source)
	}
}

func TestAskSkipsDisabledTiers(t *testing.T) {
	semantic := &scoredTierFake{source: domain.SourceSemantic, score: 1}
	gen := &generatorFake{text: "generated"}
	uc := NewCascadeUseCase(
		CascadeConfig{Threshold: 0.35},
		lexicalTierFor(passwordCorpus()), semantic, NewGenerativeTier(gen, 0), nil,
	)

	res, _ := uc.Ask(context.Background(), "gibberish")
	if res.Source != domain.SourceNone {
		t.Fatalf("expected none, got %s", res.Source)
	}
	if semantic.calls != 0 || gen.calls != 0 {
		t.Fatalf("disabled tiers were attempted: semantic=%d generative=%d", semantic.calls, gen.calls)
	}
	caps := uc.Capabilities()
	if caps.SemanticEnabled || caps.GenerativeEnabled {
		t.Fatalf("expected capabilities off, got %+v", caps)
	}
}

func TestAskFallsThroughSemanticMissToGenerative(t *testing.T) {
	semantic := &scoredTierFake{source: domain.SourceSemantic, score: 0.1}
	gen := &generatorFake{text: "Try the student help desk."}
	obs := &observerFake{}
	uc := NewCascadeUseCase(
		CascadeConfig{Threshold: 0.35, Capabilities: domain.Capabilities{SemanticEnabled: true, GenerativeEnabled: true}},
		lexicalTierFor(passwordCorpus()), semantic, NewGenerativeTier(gen, 0), obs,
	)

	res, err := uc.Ask(context.Background(), "gibberish")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if res.Source != domain.SourceGenerative || res.Score != 0 || res.MatchedQuestion != nil {
		t.Fatalf("unexpected generative result %+v", res)
	}
	if res.Category != domain.DefaultCategory || res.Answer != "Try the student help desk." {
		t.Fatalf("unexpected generative payload %+v", res)
	}
	want := []string{"lexical:miss", "semantic:miss", "generative:hit"}
	if len(obs.tiers) != len(want) {
		t.Fatalf("expected %v, got %v", want, obs.tiers)
	}
	for i := range want {
		if obs.tiers[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, obs.tiers)
		}
	}
}

func TestAskGenerativeFailureDegradesToNone(t *testing.T) {
	gen := &generatorFake{err: errors.New("401 invalid api key")}
	uc := NewCascadeUseCase(
		CascadeConfig{Threshold: 0.35, Capabilities: domain.Capabilities{GenerativeEnabled: true}},
		lexicalTierFor(passwordCorpus()), nil, NewGenerativeTier(gen, 0), nil,
	)

	res, err := uc.Ask(context.Background(), "gibberish")
	if err != nil {
		t.Fatalf("generative failure must not surface, got %v", err)
	}
	if res.Source != domain.SourceNone || res.Answer != domain.FAQFallbackAnswer {
		t.Fatalf("expected none fallback, got %+v", res)
	}
	if gen.calls != 1 {
		t.Fatalf("expected exactly one generative attempt, got %d", gen.calls)
	}
}

func TestAskEmptyGenerationDegradesToNone(t *testing.T) {
	gen := &generatorFake{text: ""}
	uc := NewCascadeUseCase(
		CascadeConfig{Threshold: 0.35, Capabilities: domain.Capabilities{GenerativeEnabled: true}},
		lexicalTierFor(passwordCorpus()), nil, NewGenerativeTier(gen, 0), nil,
	)

	res, _ := uc.Ask(context.Background(), "gibberish")
	if res.Source != domain.SourceNone {
		t.Fatalf("expected none, got %s", res.Source)
	}
}

func TestAskSemanticFailureFallsThrough(t *testing.T) {
	semantic := &scoredTierFake{source: domain.SourceSemantic, err: errors.New("ollama down")}
	uc := NewCascadeUseCase(
		CascadeConfig{Threshold: 0.35, Capabilities: domain.Capabilities{SemanticEnabled: true}},
		lexicalTierFor(passwordCorpus()), semantic, nil, nil,
	)

	res, err := uc.Ask(context.Background(), "gibberish")
	if err != nil || res.Source != domain.SourceNone {
		t.Fatalf("expected none without error, got %+v (%v)", res, err)
	}
}

func TestAskWithFallbackUsesCallerText(t *testing.T) {
	uc := NewCascadeUseCase(CascadeConfig{Threshold: 0.35}, lexicalTierFor(passwordCorpus()), nil, nil, nil)
	res, _ := uc.AskWithFallback(context.Background(), "gibberish", domain.ChatFallbackAnswer)
	if res.Answer != domain.ChatFallbackAnswer {
		t.Fatalf("expected chat fallback, got %q", res.Answer)
	}
}

func TestAskEmptyCorpusReturnsGeneralNone(t *testing.T) {
	corpus := domain.NewCorpus(nil)
	uc := NewCascadeUseCase(CascadeConfig{Threshold: 0.35}, lexicalTierFor(corpus), nil, nil, nil)
	res, err := uc.Ask(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if res.Source != domain.SourceNone || res.MatchedQuestion != nil || res.Category != domain.DefaultCategory {
		t.Fatalf("unexpected result %+v", res)
	}
}
