// Command announce publishes a knowledge-graph rebuild notification so
// running api instances reload their snapshots. The offline ingestion
// pipeline invokes it after writing a fresh graph.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/tuanhng/banking-rag-assistant/internal/config"
	"github.com/tuanhng/banking-rag-assistant/internal/infrastructure/queue/nats"
	"github.com/tuanhng/banking-rag-assistant/internal/observability/logging"
)

func main() {
	source := flag.String("source", "", "graph source that was rebuilt (defaults to the configured one)")
	timeout := flag.Duration("timeout", 10*time.Second, "publish deadline")
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewJSONLogger("announce", cfg.LogLevel)

	if *source == "" {
		switch cfg.KGSource {
		case "neo4j":
			*source = cfg.Neo4jDatabase
		default:
			*source = cfg.KGGraphMLPath
		}
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		log.Fatalf("connect nats: %v", err)
	}
	defer queue.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := queue.PublishGraphUpdated(ctx, *source); err != nil {
		log.Fatalf("publish graph update: %v", err)
	}
	if err := queue.Flush(*timeout); err != nil {
		log.Fatalf("flush: %v", err)
	}
	logger.Info("graph_update_announced", "subject", cfg.NATSSubject, "source", *source)
}
