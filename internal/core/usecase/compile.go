package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/tuanhng/banking-rag-assistant/internal/core/domain"
	"github.com/tuanhng/banking-rag-assistant/internal/core/ports"
)

// contextDelimiter separates per-candidate blocks in the compiled prompt
// text. Distinct from the delimiter the ingestion pipeline uses for chunking.
const contextDelimiter = "\n\n---\n\n"

const (
	snippetMaxChars = 300
	summaryMaxChars = 300
)

// ContextCompiler runs vector search, filters and optionally reranks
// candidates, joins them with document-graph metadata, and assembles the
// bounded context handed to the generator.
//
// Data-quality problems (empty results, unreachable index, unavailable
// reranker, missing graph nodes) are recovered locally and logged; Compile
// never surfaces them to the caller. An empty CompiledContext.Text means
// "no internal context found".
type ContextCompiler struct {
	searcher ports.VectorSearcher
	reranker ports.Reranker
	graphs   ports.GraphProvider
	logger   *slog.Logger
}

func NewContextCompiler(
	searcher ports.VectorSearcher,
	reranker ports.Reranker,
	graphs ports.GraphProvider,
	logger *slog.Logger,
) *ContextCompiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextCompiler{
		searcher: searcher,
		reranker: reranker,
		graphs:   graphs,
		logger:   logger,
	}
}

// RerankAvailable reports whether a loaded reranking model is wired in.
// Callers use it to widen the initial retrieval limit before reranking.
func (c *ContextCompiler) RerankAvailable() bool {
	return c.reranker != nil && c.reranker.Ready()
}

// Compile retrieves up to searchLimit hits for queryVector, selects the top
// rerankTopN candidates (cross-encoder order when reranking is enabled and
// available, vector-search order otherwise) and renders the final context.
func (c *ContextCompiler) Compile(
	ctx context.Context,
	query string,
	queryVector []float32,
	searchLimit int,
	rerankEnabled bool,
	rerankTopN int,
) domain.CompiledContext {
	mode := domain.RerankModeDisabled
	if rerankEnabled {
		if c.RerankAvailable() {
			mode = domain.RerankModeCrossEncoder
		} else {
			mode = domain.RerankModePassthrough
		}
	}
	empty := domain.CompiledContext{Sources: []domain.SourceDescriptor{}, RerankMode: mode}

	hits, err := c.searcher.Search(ctx, queryVector, searchLimit)
	if err != nil {
		c.logger.Warn("vector_search_failed", "error", err)
		return empty
	}
	if len(hits) == 0 {
		return empty
	}

	candidates := buildCandidates(hits, c.logger)
	if len(candidates) == 0 {
		c.logger.Warn("no_valid_candidates", "hits", len(hits))
		return empty
	}

	var final []domain.Candidate
	if mode == domain.RerankModeCrossEncoder {
		final = c.reranker.Rerank(ctx, query, candidates, rerankTopN)
	} else {
		if mode == domain.RerankModePassthrough {
			c.logger.Warn("reranker_unavailable_passthrough", "candidates", len(candidates))
		}
		final = truncateCandidates(candidates, rerankTopN)
	}

	compiled := c.render(final)
	compiled.RerankMode = mode
	return compiled
}

// buildCandidates converts raw hits into candidates, discarding hits whose
// payload carries no usable text and defaulting optional display fields.
func buildCandidates(hits []domain.SearchHit, logger *slog.Logger) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(hits))
	for _, hit := range hits {
		text := strings.TrimSpace(hit.Payload.OriginalText)
		if text == "" {
			logger.Debug("discard_hit_without_text", "hit_id", hit.ID)
			continue
		}

		name := hit.Payload.DocumentName
		if name == "" {
			name = domain.DefaultDocumentName
		}
		nodeType := hit.Payload.NodeType
		if nodeType == "" {
			nodeType = domain.DefaultNodeType
		}

		out = append(out, domain.Candidate{
			ID:           hit.ID,
			Score:        hit.Score,
			Text:         text,
			GraphNodeID:  hit.Payload.GraphNodeID,
			DocumentName: name,
			NodeType:     nodeType,
		})
	}
	return out
}

func truncateCandidates(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}

// render iterates the final candidate set in order, deduplicates by exact
// text (first occurrence wins), enriches from the graph snapshot, and
// concatenates the generator-facing blocks.
func (c *ContextCompiler) render(final []domain.Candidate) domain.CompiledContext {
	var graph ports.GraphAccessor
	if c.graphs != nil {
		graph = c.graphs.Current()
	}

	var compiled strings.Builder
	sources := make([]domain.SourceDescriptor, 0, len(final))
	seenTexts := make(map[string]struct{}, len(final))

	for _, cand := range final {
		if cand.Text == "" {
			continue
		}
		if _, dup := seenTexts[cand.Text]; dup {
			continue
		}
		seenTexts[cand.Text] = struct{}{}

		score := cand.FinalScore()
		block := fmt.Sprintf("Trích dẫn từ tài liệu '%s' (Loại: %s, Điểm liên quan: %.4f):\n\"\"\"\n%s\n\"\"\"",
			cand.DocumentName, cand.NodeType, score, cand.Text)

		descriptor := domain.SourceDescriptor{
			Source:         cand.DocumentName,
			Type:           cand.NodeType,
			Score:          score,
			ContentSnippet: snippet(cand.Text),
		}

		if graph != nil && cand.GraphNodeID != "" && graph.HasNode(cand.GraphNodeID) {
			block = c.enrichFromGraph(graph, cand, block, &descriptor)
		}

		sources = append(sources, descriptor)
		compiled.WriteString(block)
		compiled.WriteString(contextDelimiter)
	}

	text := strings.TrimSuffix(compiled.String(), contextDelimiter)
	return domain.CompiledContext{
		Text:    strings.TrimSpace(text),
		Sources: sources,
	}
}

// enrichFromGraph appends document-level context to the generator block.
// Chunk candidates inherit their parent document's summary when it is short
// enough and not already contained in the chunk text; document-summary
// candidates surface their keywords.
func (c *ContextCompiler) enrichFromGraph(
	graph ports.GraphAccessor,
	cand domain.Candidate,
	block string,
	descriptor *domain.SourceDescriptor,
) string {
	switch cand.NodeType {
	case domain.NodeTypeChunk:
		doc, ok := graph.ParentDocument(cand.GraphNodeID)
		if !ok {
			return block
		}
		summary := doc.Summary
		if summary == "" || utf8.RuneCountInString(summary) >= summaryMaxChars || strings.Contains(cand.Text, summary) {
			return block
		}
		descriptor.DocumentSummary = summary
		return block + fmt.Sprintf("\n(Tóm tắt của tài liệu '%s': %s)", cand.DocumentName, summary)

	case domain.NodeTypeDocumentSummary:
		node, ok := graph.Node(cand.GraphNodeID)
		if !ok || node.Keywords == "" {
			return block
		}
		descriptor.DocumentKeywords = node.Keywords
		return block + fmt.Sprintf("\n(Các từ khóa liên quan của tài liệu: %s)", node.Keywords)
	}
	return block
}

// snippet truncates to a hard character count, not token- or word-aware.
func snippet(text string) string {
	runes := []rune(text)
	if len(runes) > snippetMaxChars {
		return string(runes[:snippetMaxChars]) + "..."
	}
	return text
}
