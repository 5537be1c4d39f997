package graph

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/tuanhng/banking-rag-assistant/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func graphWithNode(id string) *Graph {
	b := NewBuilder()
	_ = b.AddNode(domain.GraphNode{ID: id, Type: domain.NodeTypeDocument})
	return b.Build()
}

func TestProviderInitialLoadFailure(t *testing.T) {
	_, err := NewProvider(func() (*Graph, error) {
		return nil, errors.New("neo4j unreachable")
	}, discardLogger())
	if err == nil {
		t.Fatalf("expected initial load error")
	}
}

func TestProviderReloadSwapsSnapshot(t *testing.T) {
	loads := 0
	p, err := NewProvider(func() (*Graph, error) {
		loads++
		if loads == 1 {
			return graphWithNode("doc:old"), nil
		}
		return graphWithNode("doc:new"), nil
	}, discardLogger())
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	if !p.Current().HasNode("doc:old") {
		t.Fatalf("expected initial snapshot")
	}
	if err := p.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if !p.Current().HasNode("doc:new") {
		t.Fatalf("expected reloaded snapshot")
	}
	if p.Current().HasNode("doc:old") {
		t.Fatalf("old snapshot still visible")
	}
}

func TestProviderReloadFailureKeepsPrevious(t *testing.T) {
	loads := 0
	p, err := NewProvider(func() (*Graph, error) {
		loads++
		if loads == 1 {
			return graphWithNode("doc:stable"), nil
		}
		return nil, errors.New("rebuild in progress")
	}, discardLogger())
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	if err := p.Reload(); err == nil {
		t.Fatalf("expected reload error")
	}
	if !p.Current().HasNode("doc:stable") {
		t.Fatalf("previous snapshot should survive a failed reload")
	}
}
