package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/faq-assistant/internal/config"
	"github.com/kirillkom/faq-assistant/internal/core/domain"
	"github.com/kirillkom/faq-assistant/internal/core/ports"
	"github.com/kirillkom/faq-assistant/internal/core/usecase"
	"github.com/kirillkom/faq-assistant/internal/infrastructure/dataset/file"
	"github.com/kirillkom/faq-assistant/internal/infrastructure/dataset/postgres"
	"github.com/kirillkom/faq-assistant/internal/infrastructure/lexical"
	"github.com/kirillkom/faq-assistant/internal/infrastructure/llm/groq"
	"github.com/kirillkom/faq-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/faq-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/faq-assistant/internal/infrastructure/vector/flat"
	"github.com/kirillkom/faq-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/faq-assistant/internal/observability/metrics"
)

const (
	VectorBackendMemory = "memory"
	VectorBackendQdrant = "qdrant"
)

type App struct {
	Config  config.Config
	Corpus  *domain.Corpus
	FAQ     *usecase.CascadeUseCase
	Metrics *metrics.HTTPServerMetrics

	closeFn func()
}

// New loads the corpus, builds the indexes, probes the optional tiers and
// assembles the cascade. Only a corpus that cannot be read is fatal; optional
// tiers that fail their probe are disabled with a warning.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	var m *metrics.HTTPServerMetrics
	if cfg.MetricsEnabled {
		m = metrics.NewHTTPServerMetrics("faq-api")
	}

	source, closeSource, err := newCorpusSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	raw, err := source.Load(ctx)
	if err != nil {
		closeSource()
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	corpus := domain.NewCorpus(raw)
	slog.Info("corpus_loaded", "location", redactDSN(cfg.DatasetLocation), "records", len(raw), "entries", corpus.Len())

	start := time.Now()
	lexicalIndex := lexical.NewIndex(corpus.Questions())
	finishBuild(m, "lexical", start, nil)
	lexicalTier := usecase.NewLexicalTier(corpus, lexicalIndex)

	caps := domain.Capabilities{}

	var semanticTier usecase.RetrievalTier
	if cfg.SemanticEnabled {
		tier, err := newSemanticTier(ctx, cfg, corpus, m)
		if err != nil {
			slog.Warn("semantic_tier_disabled", "error", err)
		} else {
			semanticTier = tier
			caps.SemanticEnabled = true
		}
	}

	var generativeTier usecase.RetrievalTier
	if cfg.GenerativeConfigured() {
		tier, err := newGenerativeTier(cfg)
		if err != nil {
			slog.Warn("generative_tier_disabled", "error", err)
		} else {
			generativeTier = tier
			caps.GenerativeEnabled = true
		}
	} else {
		slog.Info("generative_tier_disabled", "reason", "GROQ_API_KEY is not set")
	}

	var observer ports.CascadeObserver
	if m != nil {
		observer = m
		m.Index().SetCorpusEntries(corpus.Len())
		m.Index().SetCapabilities(caps)
	}

	faq := usecase.NewCascadeUseCase(usecase.CascadeConfig{
		Threshold:      cfg.SimilarityThreshold,
		Capabilities:   caps,
		FallbackAnswer: domain.FAQFallbackAnswer,
	}, lexicalTier, semanticTier, generativeTier, observer)

	slog.Info("cascade_ready",
		"threshold", cfg.SimilarityThreshold,
		"use_embeddings", caps.SemanticEnabled,
		"use_gpt", caps.GenerativeEnabled,
	)

	return &App{
		Config:  cfg,
		Corpus:  corpus,
		FAQ:     faq,
		Metrics: m,
		closeFn: closeSource,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newCorpusSource(ctx context.Context, cfg config.Config) (ports.CorpusSource, func(), error) {
	if isPostgresDSN(cfg.DatasetLocation) {
		db, err := postgres.OpenDB(ctx, cfg.DatasetLocation)
		if err != nil {
			return nil, nil, fmt.Errorf("open dataset database: %w", err)
		}
		source, err := postgres.NewSource(db, cfg.DatasetTable)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return source, closeDB(db), nil
	}
	return file.NewLoader(cfg.DatasetLocation), func() {}, nil
}

func closeDB(db *sql.DB) func() {
	return func() { _ = db.Close() }
}

func newSemanticTier(ctx context.Context, cfg config.Config, corpus *domain.Corpus, m *metrics.HTTPServerMetrics) (usecase.RetrievalTier, error) {
	// An empty index can never answer, and the embedder would go unprobed.
	if corpus.Len() == 0 {
		return nil, errors.New("corpus is empty")
	}
	timeout := time.Duration(cfg.EmbedTimeoutSeconds) * time.Second

	policy := withBreakerConfig(resilience.EmbeddingPolicy(), cfg)
	policy.Attempts = cfg.EmbedRetryAttempts
	policy.InitialBackoff = time.Duration(cfg.EmbedRetryBackoffMS) * time.Millisecond
	guard := resilience.NewGuard("ollama.embed", policy)
	embedder := ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, guard))

	vectors, err := newVectorIndex(ctx, cfg, timeout)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = indexCorpus(ctx, corpus, embedder, vectors, timeout)
	finishBuild(m, "semantic", start, err)
	if err != nil {
		return nil, err
	}

	return usecase.NewSemanticTier(corpus, embedder, vectors, cfg.SemanticDistanceScale, timeout), nil
}

func newVectorIndex(ctx context.Context, cfg config.Config, timeout time.Duration) (ports.VectorIndex, error) {
	switch cfg.VectorBackend {
	case "", VectorBackendMemory:
		return flat.New()
	case VectorBackendQdrant:
		client := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := client.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("qdrant unreachable: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

// indexCorpus embeds every corpus question and stores the vectors in corpus
// order, so neighbour positions are corpus indexes.
func indexCorpus(ctx context.Context, corpus *domain.Corpus, embedder ports.Embedder, vectors ports.VectorIndex, timeout time.Duration) error {
	// Startup embeds the whole corpus in one request, so it gets a larger budget
	// than a single query.
	buildCtx, cancel := context.WithTimeout(ctx, 6*timeout)
	defer cancel()

	embeddings, err := embedder.Embed(buildCtx, corpus.Questions())
	if err != nil {
		return fmt.Errorf("embed corpus: %w", err)
	}
	if err := vectors.Add(buildCtx, embeddings); err != nil {
		return fmt.Errorf("index corpus vectors: %w", err)
	}
	if vectors.Len() != corpus.Len() {
		return fmt.Errorf("semantic index holds %d vectors for %d entries", vectors.Len(), corpus.Len())
	}
	return nil
}

func newGenerativeTier(cfg config.Config) (usecase.RetrievalTier, error) {
	guard := resilience.NewGuard("groq.chat_completion", withBreakerConfig(resilience.GenerationPolicy(), cfg))

	generator, err := groq.New(groq.Config{
		APIKey:  cfg.GroqAPIKey,
		BaseURL: cfg.GroqBaseURL,
		Model:   cfg.GroqModel,
		Domain:  cfg.GenerativeDomain,
	}, guard)
	if err != nil {
		return nil, err
	}
	return usecase.NewGenerativeTier(generator, time.Duration(cfg.GenerativeTimeoutSeconds)*time.Second), nil
}

func withBreakerConfig(p resilience.Policy, cfg config.Config) resilience.Policy {
	p.Breaker.MinRequests = uint32(max(cfg.BreakerMinRequests, 0))
	p.Breaker.OpenFor = time.Duration(cfg.BreakerOpenSeconds) * time.Second
	return p
}

func finishBuild(m *metrics.HTTPServerMetrics, index string, start time.Time, err error) {
	if m != nil {
		m.Index().FinishBuild(index, time.Since(start), err)
	}
}

func isPostgresDSN(location string) bool {
	lower := strings.ToLower(strings.TrimSpace(location))
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

func redactDSN(location string) string {
	if !isPostgresDSN(location) {
		return location
	}
	if at := strings.LastIndex(location, "@"); at >= 0 {
		scheme := location[:strings.Index(location, "://")+3]
		return scheme + "***" + location[at:]
	}
	return location
}
