package domain

// EdgeType labels a directed relation in the document knowledge graph.
type EdgeType string

const (
	EdgeHasChunk  EdgeType = "HAS_CHUNK"
	EdgeNextChunk EdgeType = "NEXT_CHUNK"
)

// GraphNode is one node of the pre-built document knowledge graph. The graph
// is read-only from this service's point of view; an offline builder owns it.
type GraphNode struct {
	ID   string
	Type string

	// Document attributes.
	Name     string
	Summary  string
	Keywords string // comma-joined

	// Chunk attributes.
	TextContent      string
	OrderInDoc       int
	SourceDocumentID string
}
