package domain

// Node type tags carried by vector payloads and graph nodes.
const (
	NodeTypeDocument        = "Document"
	NodeTypeChunk           = "Chunk"
	NodeTypeDocumentSummary = "DocumentSummary"
)

// Defaults applied when a vector payload omits optional fields.
const (
	DefaultDocumentName = "unknown document"
	DefaultNodeType     = "content"
)

// HitPayload is the typed projection of a vector point payload. Payloads are
// validated and defaulted at the single point they cross into the core.
type HitPayload struct {
	OriginalText string `json:"original_text"`
	GraphNodeID  string `json:"graph_node_id"`
	DocumentName string `json:"document_name"`
	NodeType     string `json:"node_type"`
}

// SearchHit is one ranked raw result from the vector index.
type SearchHit struct {
	ID      string
	Score   float64
	Payload HitPayload
}

// Candidate is a retrieved, not-yet-finalized passage considered for
// inclusion in the compiled context. RerankScore is set only when the
// cross-encoder ran; it then supersedes Score everywhere downstream.
type Candidate struct {
	ID           string
	Score        float64
	Text         string
	GraphNodeID  string
	DocumentName string
	NodeType     string
	RerankScore  *float64
}

// FinalScore resolves the score used for display and prompt text.
func (c Candidate) FinalScore() float64 {
	if c.RerankScore != nil {
		return *c.RerankScore
	}
	return c.Score
}

// SourceDescriptor summarizes one contributing passage for display/audit.
type SourceDescriptor struct {
	Source           string  `json:"source"`
	Type             string  `json:"type"`
	Score            float64 `json:"score"`
	ContentSnippet   string  `json:"content_snippet"`
	DocumentSummary  string  `json:"document_summary,omitempty"`
	DocumentKeywords string  `json:"document_keywords,omitempty"`
}

// Selection paths a compile request can take. Reported per request so the
// fleet-wide ratio of degraded (passthrough) requests is visible.
const (
	RerankModeCrossEncoder = "cross_encoder"
	RerankModePassthrough  = "passthrough"
	RerankModeDisabled     = "disabled"
)

// CompiledContext is the final text blob handed to the generator plus the
// parallel source list. Empty text means "no internal context found".
type CompiledContext struct {
	Text       string
	Sources    []SourceDescriptor
	RerankMode string
}

// SourceSearchResult pairs the ranked descriptors with the selection path
// that produced them.
type SourceSearchResult struct {
	Sources    []SourceDescriptor
	RerankMode string
}

// ChatAnswer is the user-facing result of one chat turn.
type ChatAnswer struct {
	ConversationID string             `json:"conversation_id"`
	Answer         string             `json:"answer"`
	Sources        []SourceDescriptor `json:"sources"`
	RerankMode     string             `json:"-"`
}
