package ports

import (
	"context"

	"github.com/tuanhng/banking-rag-assistant/internal/core/domain"
)

// Embedder turns query text into a fixed-length vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher issues a similarity search against the vector index and
// returns hits ordered descending by score. A transport or provider failure
// is an error; callers recover it locally as "no results".
type VectorSearcher interface {
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.SearchHit, error)
}

// Reranker reorders candidates with a pairwise (query, text) scoring model.
// Rerank never fails: when the model is unavailable or scoring errors, it
// degrades to pass-through truncation of the input order. Implementations
// must not mutate caller-owned candidates.
type Reranker interface {
	Ready() bool
	Rerank(ctx context.Context, query string, candidates []domain.Candidate, topN int) []domain.Candidate
}

// GraphAccessor provides read-only lookups into one immutable snapshot of
// the document knowledge graph. Missing nodes are not errors.
type GraphAccessor interface {
	HasNode(id string) bool
	Node(id string) (domain.GraphNode, bool)
	ParentDocument(chunkID string) (domain.GraphNode, bool)
}

// GraphProvider hands out the current graph snapshot. The snapshot is
// immutable; the provider may swap in a new one between requests when the
// offline builder announces a rebuild.
type GraphProvider interface {
	Current() GraphAccessor
}

// AnswerGenerator creates the final user-facing answer from the compiled
// context and conversation history.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, compiledContext, history string) (string, error)
}

// ConversationStore persists chat history.
type ConversationStore interface {
	EnsureConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
	NextTurn(ctx context.Context, conversationID string) (int, error)
	AppendMessage(ctx context.Context, message domain.ConversationMessage) error
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.ConversationMessage, error)
}
