// Package groq talks to an OpenAI-compatible chat completion endpoint (Groq
// by default) for questions the FAQ corpus can't answer.
package groq

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
	"github.com/kirillkom/faq-assistant/internal/infrastructure/resilience"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Domain  string
}

type Generator struct {
	client       *openai.Client
	model        string
	systemPrompt string
	guard        *resilience.Guard
}

// New fails when no credential is configured; callers treat that as the
// generative tier being unavailable.
func New(cfg Config, guard *resilience.Guard) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, domain.WrapError(domain.ErrTierUnavailable, "groq init", errors.New("api key is not configured"))
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, domain.WrapError(domain.ErrTierUnavailable, "groq init", errors.New("model is not configured"))
	}
	if guard == nil {
		guard = resilience.NewGuard("groq.chat_completion", resilience.GenerationPolicy())
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &Generator{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		systemPrompt: buildSystemPrompt(cfg.Domain),
		guard:        guard,
	}, nil
}

// Generate sends one system turn and the query as the only user turn. There
// is a single attempt; the guard only contributes its circuit breaker.
func (g *Generator) Generate(ctx context.Context, query string) (string, error) {
	text, err := resilience.Do(ctx, g.guard, classifyError, func(callCtx context.Context) (string, error) {
		resp, err := g.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: g.systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: query},
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", domain.WrapError(domain.ErrEmptyGeneration, "groq chat completion", errors.New("no choices in response"))
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
	if err != nil {
		return "", fmt.Errorf("groq generate: %w", err)
	}
	return text, nil
}

func buildSystemPrompt(domainName string) string {
	domainName = strings.TrimSpace(domainName)
	if domainName == "" {
		return "You are a helpful assistant."
	}
	return fmt.Sprintf("You are a helpful assistant for %s.", domainName)
}

// classifyError decides what trips the breaker: auth and request errors are
// the caller's fault, everything else counts as a provider failure.
func classifyError(err error) resilience.Verdict {
	if errors.Is(err, context.Canceled) {
		return resilience.Verdict{}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return resilience.Verdict{}
		}
	}
	return resilience.Verdict{Trip: true}
}
