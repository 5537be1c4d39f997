package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tuanhng/banking-rag-assistant/internal/config"
	"github.com/tuanhng/banking-rag-assistant/internal/core/ports"
	"github.com/tuanhng/banking-rag-assistant/internal/core/usecase"
	"github.com/tuanhng/banking-rag-assistant/internal/infrastructure/graph"
	neo4jgraph "github.com/tuanhng/banking-rag-assistant/internal/infrastructure/graph/neo4j"
	"github.com/tuanhng/banking-rag-assistant/internal/infrastructure/llm/gemini"
	"github.com/tuanhng/banking-rag-assistant/internal/infrastructure/queue/nats"
	"github.com/tuanhng/banking-rag-assistant/internal/infrastructure/repository/postgres"
	"github.com/tuanhng/banking-rag-assistant/internal/infrastructure/rerank/crossencoder"
	"github.com/tuanhng/banking-rag-assistant/internal/infrastructure/resilience"
	"github.com/tuanhng/banking-rag-assistant/internal/infrastructure/vector/qdrant"
	"github.com/tuanhng/banking-rag-assistant/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Metrics *metrics.HTTPServerMetrics

	ChatUC   ports.ChatService
	SearchUC ports.SourceSearchService

	graphs *graph.Provider
	queue  *nats.Queue
	logger *slog.Logger

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	conversations := postgres.NewConversationRepository(db)
	if err := conversations.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	keyring, err := gemini.NewKeyring(cfg.GeminiAPIKeys)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init gemini keyring: %w", err)
	}
	llm := gemini.NewProvider(gemini.Config{
		GenerationModel: cfg.GeminiGenerationModel,
		EmbeddingModel:  cfg.GeminiEmbeddingModel,
		HomepageURL:     cfg.BankHomepageURL,
		ContactInfo:     cfg.BankContactInfo,
	}, keyring, executor, logger)

	searcher := qdrant.New(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.QdrantCollection)

	var reranker ports.Reranker
	var rerankerClose func() error
	if cfg.RerankerActive {
		ce := crossencoder.New(cfg.RerankerModelName, cfg.RerankerModelDir, logger)
		reranker = ce
		rerankerClose = ce.Close
	}

	load, loaderClose, err := graphLoadFunc(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	graphs, err := graph.NewProvider(load, logger)
	if err != nil {
		if loaderClose != nil {
			_ = loaderClose()
		}
		_ = db.Close()
		return nil, fmt.Errorf("init graph provider: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		if loaderClose != nil {
			_ = loaderClose()
		}
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	m := metrics.NewHTTPServerMetrics("api")

	compiler := usecase.NewContextCompiler(searcher, reranker, graphs, logger)
	chatUC := usecase.NewChatUseCase(llm, compiler, llm, conversations, usecase.ChatConfig{
		SearchLimit:     cfg.QdrantSearchLimit,
		RerankEnabled:   cfg.RerankerActive,
		RerankTopN:      cfg.RerankTopN,
		HistoryMessages: cfg.HistoryMessages,
	}, logger)
	searchUC := usecase.NewSearchUseCase(llm, compiler, cfg.QdrantSearchLimit, cfg.RerankerActive)

	return &App{
		Config:   cfg,
		Metrics:  m,
		ChatUC:   chatUC,
		SearchUC: searchUC,
		graphs:   graphs,
		queue:    queue,
		logger:   logger,

		closeFn: func() {
			queue.Close()
			if rerankerClose != nil {
				_ = rerankerClose()
			}
			if loaderClose != nil {
				_ = loaderClose()
			}
			_ = db.Close()
		},
	}, nil
}

// RunGraphUpdateListener blocks until ctx is cancelled, swapping in a fresh
// graph snapshot whenever the offline builder announces a rebuild.
func (a *App) RunGraphUpdateListener(ctx context.Context) error {
	return a.queue.SubscribeGraphUpdated(ctx, func(ctx context.Context, source string) error {
		if err := a.graphs.Reload(); err != nil {
			a.Metrics.RecordGraphReload("api", "failure")
			return err
		}
		a.Metrics.RecordGraphReload("api", "success")
		a.logger.Info("graph_snapshot_swapped", "source", source)
		return nil
	})
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func graphLoadFunc(ctx context.Context, cfg config.Config) (graph.LoadFunc, func() error, error) {
	switch cfg.KGSource {
	case "neo4j":
		loader, err := neo4jgraph.NewLoader(ctx, neo4jgraph.Config{
			URI:      cfg.Neo4jURI,
			Username: cfg.Neo4jUsername,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init neo4j loader: %w", err)
		}
		load := func() (*graph.Graph, error) {
			return loader.Load(context.Background())
		}
		closeFn := func() error {
			return loader.Close(context.Background())
		}
		return load, closeFn, nil
	case "file", "":
		path := cfg.KGGraphMLPath
		load := func() (*graph.Graph, error) {
			return graph.LoadGraphML(path)
		}
		return load, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown knowledge graph source %q", cfg.KGSource)
	}
}
