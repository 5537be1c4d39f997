package graph

import (
	"fmt"

	"github.com/tuanhng/banking-rag-assistant/internal/core/domain"
)

// Graph is an immutable-after-build, in-memory directed document graph.
// Lookups are map-backed; missing nodes are never errors. Safe for
// unlimited concurrent readers once built.
type Graph struct {
	nodes      map[string]domain.GraphNode
	successors map[string]map[domain.EdgeType][]string
}

// Builder accumulates nodes and edges, then freezes them into a Graph.
// The offline knowledge-graph pipeline owns graph content; loaders in this
// package only reconstruct it.
type Builder struct {
	graph *Graph
}

func NewBuilder() *Builder {
	return &Builder{graph: &Graph{
		nodes:      make(map[string]domain.GraphNode),
		successors: make(map[string]map[domain.EdgeType][]string),
	}}
}

func (b *Builder) AddNode(node domain.GraphNode) error {
	if node.ID == "" {
		return fmt.Errorf("graph node without id")
	}
	b.graph.nodes[node.ID] = node
	return nil
}

func (b *Builder) AddEdge(from, to string, edgeType domain.EdgeType) error {
	if from == "" || to == "" {
		return fmt.Errorf("graph edge with empty endpoint: %q -> %q", from, to)
	}
	byType := b.graph.successors[from]
	if byType == nil {
		byType = make(map[domain.EdgeType][]string)
		b.graph.successors[from] = byType
	}
	byType[edgeType] = append(byType[edgeType], to)
	return nil
}

// Build hands over the accumulated graph. The builder must not be reused.
func (b *Builder) Build() *Graph {
	g := b.graph
	b.graph = nil
	return g
}

func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

func (g *Graph) Node(id string) (domain.GraphNode, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// ParentDocument follows a chunk's source_document_id back-reference.
func (g *Graph) ParentDocument(chunkID string) (domain.GraphNode, bool) {
	chunk, ok := g.nodes[chunkID]
	if !ok || chunk.SourceDocumentID == "" {
		return domain.GraphNode{}, false
	}
	doc, ok := g.nodes[chunk.SourceDocumentID]
	return doc, ok
}

// Successors returns the targets of all outgoing edges of the given type.
func (g *Graph) Successors(id string, edgeType domain.EdgeType) []string {
	byType, ok := g.successors[id]
	if !ok {
		return nil
	}
	return byType[edgeType]
}

func (g *Graph) NodeCount() int { return len(g.nodes) }

func (g *Graph) EdgeCount() int {
	n := 0
	for _, byType := range g.successors {
		for _, targets := range byType {
			n += len(targets)
		}
	}
	return n
}
