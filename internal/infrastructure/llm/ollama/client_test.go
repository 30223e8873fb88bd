package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
	"github.com/kirillkom/faq-assistant/internal/infrastructure/resilience"
)

func fastGuard() *resilience.Guard {
	return resilience.NewGuard("ollama.embed", resilience.Policy{
		Attempts:       3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
		Breaker:        resilience.BreakerPolicy{Disabled: true},
	})
}

func TestEmbedSendsModelAndInputs(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "all-minilm", fastGuard()))
	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || vectors[1][0] != 0.3 {
		t.Fatalf("unexpected vectors %v", vectors)
	}
	if captured["model"] != "all-minilm" {
		t.Fatalf("expected model in request, got %v", captured["model"])
	}
}

func TestEmbedRetriesBadGatewayAndMarksTemporary(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "all-minilm", fastGuard()))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error kind, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestEmbedDoesNotRetryBadRequest(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unknown model", http.StatusNotFound)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "missing", fastGuard()))
	if _, err := embedder.EmbedQuery(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestEmbedRejectsMisalignedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "all-minilm", fastGuard()))
	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected alignment error")
	}
}

func TestEmbedDeadlinesOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	guard := resilience.NewGuard("ollama.embed", resilience.Policy{
		Attempts: 1,
		Breaker: resilience.BreakerPolicy{
			MinRequests:    3,
			FailureRatio:   0.5,
			OpenFor:        time.Minute,
			HalfOpenProbes: 1,
		},
	})
	embedder := NewEmbedder(New(server.URL, "all-minilm", guard))

	var lastErr error
	for i := 0; i < 8; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		_, lastErr = embedder.EmbedQuery(ctx, "hello")
		cancel()
		if lastErr == nil {
			t.Fatalf("call %d: expected error from hanging backend", i)
		}
	}

	if got := calls.Load(); got != 3 {
		t.Fatalf("expected breaker to stop traffic after 3 calls, server saw %d", got)
	}
	if state := guard.State(); state != "open" {
		t.Fatalf("expected open breaker, got %q", state)
	}
	if !resilience.IsCircuitOpen(lastErr) || !domain.IsKind(lastErr, domain.ErrTemporary) {
		t.Fatalf("expected temporary open-circuit error, got %v", lastErr)
	}
}

func TestEmbedCancellationDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	guard := resilience.NewGuard("ollama.embed", resilience.Policy{
		Attempts: 1,
		Breaker:  resilience.BreakerPolicy{MinRequests: 1, FailureRatio: 0.5, OpenFor: time.Minute},
	})
	embedder := NewEmbedder(New(server.URL, "all-minilm", guard))

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(10*time.Millisecond, cancel)
		if _, err := embedder.EmbedQuery(ctx, "hello"); err == nil {
			t.Fatalf("call %d: expected cancellation error", i)
		}
		cancel()
	}
	if state := guard.State(); state != "closed" {
		t.Fatalf("cancelled calls should not open the breaker, got %q", state)
	}
}
