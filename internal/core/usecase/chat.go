package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tuanhng/banking-rag-assistant/internal/core/domain"
	"github.com/tuanhng/banking-rag-assistant/internal/core/ports"
)

// ChatConfig carries the retrieval knobs for one deployment.
type ChatConfig struct {
	SearchLimit     int
	RerankEnabled   bool
	RerankTopN      int
	HistoryMessages int
}

// ChatUseCase runs one RAG chat turn: embed the question, compile internal
// context, generate the consultant answer, persist the conversation turn.
type ChatUseCase struct {
	embedder      ports.Embedder
	compiler      *ContextCompiler
	generator     ports.AnswerGenerator
	conversations ports.ConversationStore
	cfg           ChatConfig
	logger        *slog.Logger
}

func NewChatUseCase(
	embedder ports.Embedder,
	compiler *ContextCompiler,
	generator ports.AnswerGenerator,
	conversations ports.ConversationStore,
	cfg ChatConfig,
	logger *slog.Logger,
) *ChatUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		embedder:      embedder,
		compiler:      compiler,
		generator:     generator,
		conversations: conversations,
		cfg:           cfg,
		logger:        logger,
	}
}

func (uc *ChatUseCase) Chat(ctx context.Context, conversationID, question string) (*domain.ChatAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("chat: %w: question is empty", domain.ErrInvalidInput)
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	searchLimit, topN := uc.retrievalLimits()
	compiled := uc.compiler.Compile(ctx, question, queryVector, searchLimit, uc.cfg.RerankEnabled, topN)
	if compiled.Text == "" {
		uc.logger.Info("no_internal_context", "conversation_id", conversationID)
	}

	history, err := uc.formatHistory(ctx, conversationID)
	if err != nil {
		// History is an enrichment; a storage hiccup must not block the answer.
		uc.logger.Warn("load_history_failed", "conversation_id", conversationID, "error", err)
		history = ""
	}

	answer, err := uc.generator.GenerateAnswer(ctx, question, compiled.Text, history)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	uc.persistTurn(ctx, conversationID, question, answer)

	return &domain.ChatAnswer{
		ConversationID: conversationID,
		Answer:         answer,
		Sources:        compiled.Sources,
		RerankMode:     compiled.RerankMode,
	}, nil
}

// retrievalLimits widens the initial vector-search limit when reranking will
// run, so the cross-encoder has enough candidates to work with. Without a
// usable reranker the search limit collapses to the final top-N.
func (uc *ChatUseCase) retrievalLimits() (searchLimit, topN int) {
	searchLimit = uc.cfg.SearchLimit
	topN = uc.cfg.RerankTopN
	if topN <= 0 {
		topN = 5
	}
	if uc.cfg.RerankEnabled && uc.compiler.RerankAvailable() {
		if searchLimit < topN {
			searchLimit = topN * 2
		}
	} else {
		searchLimit = topN
	}
	return searchLimit, topN
}

func (uc *ChatUseCase) formatHistory(ctx context.Context, conversationID string) (string, error) {
	if uc.conversations == nil || uc.cfg.HistoryMessages <= 0 {
		return "", nil
	}
	messages, err := uc.conversations.ListRecentMessages(ctx, conversationID, uc.cfg.HistoryMessages)
	if err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		label := "Khách hàng"
		if msg.Role == domain.RoleAssistant {
			label = "Trợ lý"
		}
		lines = append(lines, label+": "+msg.Content)
	}
	return strings.Join(lines, "\n"), nil
}

func (uc *ChatUseCase) persistTurn(ctx context.Context, conversationID, question, answer string) {
	if uc.conversations == nil {
		return
	}
	if _, err := uc.conversations.EnsureConversation(ctx, conversationID); err != nil {
		uc.logger.Warn("ensure_conversation_failed", "conversation_id", conversationID, "error", err)
		return
	}
	turn, err := uc.conversations.NextTurn(ctx, conversationID)
	if err != nil {
		uc.logger.Warn("advance_turn_failed", "conversation_id", conversationID, "error", err)
		return
	}

	now := time.Now().UTC()
	for _, msg := range []domain.ConversationMessage{
		{ID: uuid.NewString(), ConversationID: conversationID, Role: domain.RoleUser, Content: question, Turn: turn, CreatedAt: now},
		{ID: uuid.NewString(), ConversationID: conversationID, Role: domain.RoleAssistant, Content: answer, Turn: turn, CreatedAt: now},
	} {
		if err := uc.conversations.AppendMessage(ctx, msg); err != nil {
			uc.logger.Warn("append_message_failed", "conversation_id", conversationID, "role", msg.Role, "error", err)
		}
	}
}
