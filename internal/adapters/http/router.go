package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/faq-assistant/internal/config"
	"github.com/kirillkom/faq-assistant/internal/core/domain"
	"github.com/kirillkom/faq-assistant/internal/core/ports"
)

const maxChatBodyBytes = 64 << 10

type MetricsRecorder interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type Router struct {
	cfg     config.Config
	faq     ports.FAQService
	metrics MetricsRecorder
}

func NewRouter(cfg config.Config, faq ports.FAQService, metrics MetricsRecorder) *Router {
	return &Router{
		cfg:     cfg,
		faq:     faq,
		metrics: metrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", rt.health)
	mux.HandleFunc("/api/faq", rt.askFAQ)
	mux.HandleFunc("/api/chat", rt.chat)

	var api http.Handler = mux
	api = backpressureMiddleware(api, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIQueueTimeoutMS)*time.Millisecond)
	api = rateLimitMiddleware(api, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	root := http.NewServeMux()
	if rt.metrics != nil {
		root.Handle("/metrics", rt.metrics.Handler())
		api = rt.metrics.Middleware(api)
	}
	root.Handle("/", api)

	return requestIDMiddleware(accessLogMiddleware(root))
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	caps := rt.faq.Capabilities()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"use_embeddings": caps.SemanticEnabled,
		"use_gpt":        caps.GenerativeEnabled,
	})
}

func (rt *Router) askFAQ(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Please provide ?query=..."})
		return
	}

	result, err := rt.faq.Ask(r.Context(), query)
	if err != nil {
		rt.writeError(w, r, "faq_query_failed", err)
		return
	}
	annotateCascade(r, string(result.Source), result.Score)
	writeJSON(w, http.StatusOK, newResultResponse(result, "answer"))
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	body := http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty message"})
		return
	}

	result, err := rt.faq.AskWithFallback(r.Context(), message, domain.ChatFallbackAnswer)
	if err != nil {
		rt.writeError(w, r, "chat_query_failed", err)
		return
	}
	annotateCascade(r, string(result.Source), result.Score)
	writeJSON(w, http.StatusOK, newResultResponse(result, "reply"))
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, event string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error(event, "request_id", requestIDFromContext(r.Context()), "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// newResultResponse renders a cascade result; the answer text goes under
// answerKey so /api/faq and /api/chat can keep their historical field names.
func newResultResponse(result *domain.RetrievalResult, answerKey string) map[string]any {
	return map[string]any{
		"source":           result.Source,
		"match_score":      roundScore(result.Score),
		"matched_question": result.MatchedQuestion,
		answerKey:          result.Answer,
		"category":         result.Category,
	}
}

func roundScore(score float64) float64 {
	return math.Round(score*1000) / 1000
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
