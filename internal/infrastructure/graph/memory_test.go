package graph

import (
	"testing"

	"github.com/tuanhng/banking-rag-assistant/internal/core/domain"
)

func buildTestGraph(t *testing.T) *Graph {
	t.Helper()
	builder := NewBuilder()
	nodes := []domain.GraphNode{
		{ID: "doc:tietkiem", Type: domain.NodeTypeDocument, Name: "tietkiem", Summary: "Tóm tắt", Keywords: "tiết kiệm, lãi suất"},
		{ID: "chunk:tietkiem_0", Type: domain.NodeTypeChunk, TextContent: "đoạn 0", OrderInDoc: 0, SourceDocumentID: "doc:tietkiem"},
		{ID: "chunk:tietkiem_1", Type: domain.NodeTypeChunk, TextContent: "đoạn 1", OrderInDoc: 1, SourceDocumentID: "doc:tietkiem"},
	}
	for _, node := range nodes {
		if err := builder.AddNode(node); err != nil {
			t.Fatalf("AddNode(%s) error = %v", node.ID, err)
		}
	}
	edges := []struct {
		from, to string
		edgeType domain.EdgeType
	}{
		{"doc:tietkiem", "chunk:tietkiem_0", domain.EdgeHasChunk},
		{"doc:tietkiem", "chunk:tietkiem_1", domain.EdgeHasChunk},
		{"chunk:tietkiem_0", "chunk:tietkiem_1", domain.EdgeNextChunk},
	}
	for _, e := range edges {
		if err := builder.AddEdge(e.from, e.to, e.edgeType); err != nil {
			t.Fatalf("AddEdge(%s->%s) error = %v", e.from, e.to, err)
		}
	}
	return builder.Build()
}

func TestGraphNodeLookups(t *testing.T) {
	g := buildTestGraph(t)

	if !g.HasNode("doc:tietkiem") {
		t.Fatalf("expected doc node present")
	}
	if g.HasNode("doc:missing") {
		t.Fatalf("missing node must report false")
	}
	node, ok := g.Node("chunk:tietkiem_1")
	if !ok || node.OrderInDoc != 1 {
		t.Fatalf("unexpected chunk node %+v ok=%v", node, ok)
	}
	if _, ok := g.Node("nope"); ok {
		t.Fatalf("missing node lookup must not succeed")
	}
}

func TestGraphParentDocument(t *testing.T) {
	g := buildTestGraph(t)

	doc, ok := g.ParentDocument("chunk:tietkiem_0")
	if !ok {
		t.Fatalf("expected parent document")
	}
	if doc.ID != "doc:tietkiem" || doc.Summary != "Tóm tắt" {
		t.Fatalf("unexpected parent %+v", doc)
	}
	if _, ok := g.ParentDocument("doc:tietkiem"); ok {
		t.Fatalf("document node has no parent")
	}
	if _, ok := g.ParentDocument("chunk:missing"); ok {
		t.Fatalf("missing chunk has no parent")
	}
}

func TestGraphSuccessorsByEdgeType(t *testing.T) {
	g := buildTestGraph(t)

	chunks := g.Successors("doc:tietkiem", domain.EdgeHasChunk)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 HAS_CHUNK successors, got %d", len(chunks))
	}
	next := g.Successors("chunk:tietkiem_0", domain.EdgeNextChunk)
	if len(next) != 1 || next[0] != "chunk:tietkiem_1" {
		t.Fatalf("unexpected NEXT_CHUNK successors %v", next)
	}
	if got := g.Successors("chunk:tietkiem_1", domain.EdgeNextChunk); len(got) != 0 {
		t.Fatalf("last chunk has no successor, got %v", got)
	}
}

func TestBuilderRejectsInvalidInput(t *testing.T) {
	builder := NewBuilder()
	if err := builder.AddNode(domain.GraphNode{}); err == nil {
		t.Fatalf("expected error for node without id")
	}
	if err := builder.AddEdge("", "x", domain.EdgeHasChunk); err == nil {
		t.Fatalf("expected error for edge without source")
	}
}
