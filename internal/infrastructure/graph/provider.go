package graph

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/tuanhng/banking-rag-assistant/internal/core/ports"
)

// LoadFunc reconstructs the graph from its backing source.
type LoadFunc func() (*Graph, error)

// Provider holds the current graph snapshot behind an atomic pointer.
// Readers always see one complete, immutable snapshot; Reload swaps in a
// fresh one when the offline builder announces a rebuild.
type Provider struct {
	load    LoadFunc
	current atomic.Pointer[Graph]
	logger  *slog.Logger
}

func NewProvider(load LoadFunc, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{load: load, logger: logger}

	g, err := load()
	if err != nil {
		return nil, fmt.Errorf("initial graph load: %w", err)
	}
	p.current.Store(g)
	logger.Info("knowledge_graph_loaded", "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return p, nil
}

func (p *Provider) Current() ports.GraphAccessor {
	return p.current.Load()
}

// Reload rebuilds the graph and swaps it in. On failure the previous
// snapshot stays active.
func (p *Provider) Reload() error {
	g, err := p.load()
	if err != nil {
		p.logger.Error("knowledge_graph_reload_failed", "error", err)
		return fmt.Errorf("reload graph: %w", err)
	}
	p.current.Store(g)
	p.logger.Info("knowledge_graph_reloaded", "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return nil
}
