package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tuanhng/banking-rag-assistant/internal/core/domain"
	"github.com/tuanhng/banking-rag-assistant/internal/core/ports"
	"github.com/tuanhng/banking-rag-assistant/internal/observability/metrics"
)

const serviceName = "api"

type RouterConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

type Router struct {
	chat   ports.ChatService
	search ports.SourceSearchService
	m      *metrics.HTTPServerMetrics
	logger *slog.Logger
	cfg    RouterConfig
}

func NewRouter(
	chat ports.ChatService,
	search ports.SourceSearchService,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
	cfg RouterConfig,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{chat: chat, search: search, m: m, logger: logger, cfg: cfg}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/chat", rt.chatEndpoint)
	mux.HandleFunc("/v1/search/documents", rt.searchDocuments)
	if rt.m != nil {
		mux.Handle("/metrics", rt.m.Handler())
	}

	var handler http.Handler = mux
	handler = rateLimitMiddleware(rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst, handler)
	if rt.m != nil {
		handler = rt.m.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) chatEndpoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query          string `json:"query"`
		ConversationID string `json:"conversation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	answer, err := rt.chat.Chat(r.Context(), req.ConversationID, req.Query)
	if err != nil {
		rt.logger.Error("chat_request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.m != nil {
		rt.m.RecordRAGObservation(serviceName, "chat", len(answer.Sources), time.Since(start))
		rt.m.RecordRerankMode(serviceName, "chat", answer.RerankMode)
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Answer:           answer.Answer,
		RetrievedSources: answer.Sources,
		ConversationID:   answer.ConversationID,
	})
}

func (rt *Router) searchDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	result, err := rt.search.SearchSources(r.Context(), req.Query, req.TopK)
	if err != nil {
		rt.logger.Error("search_request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.m != nil {
		rt.m.RecordRAGObservation(serviceName, "search_documents", len(result.Sources), time.Since(start))
		rt.m.RecordRerankMode(serviceName, "search_documents", result.RerankMode)
	}

	writeJSON(w, http.StatusOK, result.Sources)
}

type chatResponse struct {
	Answer           string                    `json:"answer"`
	RetrievedSources []domain.SourceDescriptor `json:"retrieved_sources"`
	ConversationID   string                    `json:"conversation_id"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
