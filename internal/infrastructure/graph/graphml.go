package graph

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tuanhng/banking-rag-assistant/internal/core/domain"
)

// GraphML as emitted by the offline knowledge-graph builder: attribute keys
// declared up front, then nodes/edges carrying <data> elements keyed by id.

type graphmlFile struct {
	XMLName xml.Name     `xml:"graphml"`
	Keys    []graphmlKey `xml:"key"`
	Graph   graphmlGraph `xml:"graph"`
}

type graphmlKey struct {
	ID     string `xml:"id,attr"`
	Target string `xml:"for,attr"`
	Name   string `xml:"attr.name,attr"`
}

type graphmlGraph struct {
	Nodes []graphmlNode `xml:"node"`
	Edges []graphmlEdge `xml:"edge"`
}

type graphmlNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphmlData `xml:"data"`
}

type graphmlEdge struct {
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphmlData `xml:"data"`
}

type graphmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// LoadGraphML reads a document knowledge graph from a GraphML file.
func LoadGraphML(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open graphml: %w", err)
	}
	defer f.Close()
	return ParseGraphML(f)
}

// ParseGraphML decodes GraphML from r into an immutable in-memory graph.
func ParseGraphML(r io.Reader) (*Graph, error) {
	var file graphmlFile
	if err := xml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode graphml: %w", err)
	}

	nodeKeys := make(map[string]string)
	edgeKeys := make(map[string]string)
	for _, key := range file.Keys {
		switch key.Target {
		case "node":
			nodeKeys[key.ID] = key.Name
		case "edge":
			edgeKeys[key.ID] = key.Name
		}
	}

	builder := NewBuilder()
	for _, raw := range file.Graph.Nodes {
		attrs := make(map[string]string, len(raw.Data))
		for _, data := range raw.Data {
			if name, ok := nodeKeys[data.Key]; ok {
				attrs[name] = data.Value
			}
		}
		if err := builder.AddNode(nodeFromAttrs(raw.ID, attrs)); err != nil {
			return nil, err
		}
	}

	for _, raw := range file.Graph.Edges {
		edgeType := domain.EdgeType("")
		for _, data := range raw.Data {
			if edgeKeys[data.Key] == "type" {
				edgeType = domain.EdgeType(data.Value)
			}
		}
		if err := builder.AddEdge(raw.Source, raw.Target, edgeType); err != nil {
			return nil, err
		}
	}

	return builder.Build(), nil
}

func nodeFromAttrs(id string, attrs map[string]string) domain.GraphNode {
	node := domain.GraphNode{
		ID:               id,
		Type:             attrs["type"],
		Name:             attrs["name"],
		Summary:          attrs["summary"],
		Keywords:         attrs["keywords"],
		TextContent:      attrs["text_content"],
		SourceDocumentID: attrs["source_document_id"],
	}
	if raw, ok := attrs["order_in_doc"]; ok {
		if order, err := strconv.Atoi(raw); err == nil {
			node.OrderInDoc = order
		}
	}
	return node
}
