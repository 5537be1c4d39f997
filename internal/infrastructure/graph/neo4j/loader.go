package neo4j

import (
	"context"
	"fmt"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/tuanhng/banking-rag-assistant/internal/core/domain"
	"github.com/tuanhng/banking-rag-assistant/internal/infrastructure/graph"
)

const (
	nodesQuery = `
MATCH (n) WHERE n.id IS NOT NULL
RETURN n.id AS id, n.type AS type, n.name AS name, n.summary AS summary,
       n.keywords AS keywords, n.text_content AS text_content,
       n.order_in_doc AS order_in_doc, n.source_document_id AS source_document_id`

	edgesQuery = `
MATCH (a)-[r]->(b) WHERE a.id IS NOT NULL AND b.id IS NOT NULL
RETURN a.id AS source, b.id AS target, type(r) AS type`
)

// Config carries the connection settings for the graph database.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Loader reads the document knowledge graph out of Neo4j and materializes
// it as an in-memory snapshot.
type Loader struct {
	driver   neo4jdrv.DriverWithContext
	database string
}

func NewLoader(ctx context.Context, cfg Config) (*Loader, error) {
	driver, err := neo4jdrv.NewDriverWithContext(cfg.URI, neo4jdrv.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Loader{driver: driver, database: cfg.Database}, nil
}

func (l *Loader) Close(ctx context.Context) error {
	return l.driver.Close(ctx)
}

// Load pulls every node and relationship and rebuilds the snapshot.
func (l *Loader) Load(ctx context.Context) (*graph.Graph, error) {
	builder := graph.NewBuilder()

	nodes, err := neo4jdrv.ExecuteQuery(ctx, l.driver, nodesQuery, nil,
		neo4jdrv.EagerResultTransformer, neo4jdrv.ExecuteQueryWithDatabase(l.database))
	if err != nil {
		return nil, fmt.Errorf("query graph nodes: %w", err)
	}
	for _, record := range nodes.Records {
		row := record.AsMap()
		node := domain.GraphNode{
			ID:               asString(row["id"]),
			Type:             asString(row["type"]),
			Name:             asString(row["name"]),
			Summary:          asString(row["summary"]),
			Keywords:         asString(row["keywords"]),
			TextContent:      asString(row["text_content"]),
			OrderInDoc:       asInt(row["order_in_doc"]),
			SourceDocumentID: asString(row["source_document_id"]),
		}
		if err := builder.AddNode(node); err != nil {
			return nil, fmt.Errorf("add graph node: %w", err)
		}
	}

	edges, err := neo4jdrv.ExecuteQuery(ctx, l.driver, edgesQuery, nil,
		neo4jdrv.EagerResultTransformer, neo4jdrv.ExecuteQueryWithDatabase(l.database))
	if err != nil {
		return nil, fmt.Errorf("query graph edges: %w", err)
	}
	for _, record := range edges.Records {
		row := record.AsMap()
		source := asString(row["source"])
		target := asString(row["target"])
		edgeType := domain.EdgeType(asString(row["type"]))
		if err := builder.AddEdge(source, target, edgeType); err != nil {
			return nil, fmt.Errorf("add graph edge %s->%s: %w", source, target, err)
		}
	}

	return builder.Build(), nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
