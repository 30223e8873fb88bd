package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/faq-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	embedModel string
	httpClient *http.Client
	guard      *resilience.Guard
}

func New(baseURL, embedModel string, guard *resilience.Guard) *Client {
	if guard == nil {
		guard = resilience.NewGuard("ollama.embed", resilience.EmbeddingPolicy())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		guard:      guard,
	}
}

// Embedder turns questions into dense vectors via /api/embed. Callers bound
// latency with the context deadline; the client timeout is only a backstop.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := embedRequest{Model: e.client.embedModel, Input: texts}
	resp, err := resilience.Do(ctx, e.client.guard, classify, func(callCtx context.Context) (embedResponse, error) {
		return e.client.embed(callCtx, req)
	})
	if err != nil {
		return nil, asTemporary(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed returned %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("ollama embed returned an empty vector")
	}
	return vectors[0], nil
}
