package ports

import (
	"context"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
)

// FAQService is the inbound contract for answering a single question through
// the retrieval cascade.
type FAQService interface {
	Ask(ctx context.Context, query string) (*domain.RetrievalResult, error)
	AskWithFallback(ctx context.Context, query, fallbackAnswer string) (*domain.RetrievalResult, error)
	Capabilities() domain.Capabilities
}
