package ports

import (
	"context"

	"github.com/tuanhng/banking-rag-assistant/internal/core/domain"
)

// ChatService is the inbound contract for one RAG chat turn.
type ChatService interface {
	Chat(ctx context.Context, conversationID, question string) (*domain.ChatAnswer, error)
}

// SourceSearchService returns ranked source descriptors without generation.
type SourceSearchService interface {
	SearchSources(ctx context.Context, query string, topK int) (*domain.SourceSearchResult, error)
}
