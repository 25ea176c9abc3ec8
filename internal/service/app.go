package service

import (
	"context"
	"fmt"
	"log/slog"

	"agentic-rag/internal/agent"
	"agentic-rag/internal/chunker"
	"agentic-rag/internal/config"
	"agentic-rag/internal/embedding"
	"agentic-rag/internal/index"
	"agentic-rag/internal/llm"
	"agentic-rag/internal/loader"
	"agentic-rag/internal/progress"
	"agentic-rag/internal/tools"
	"agentic-rag/internal/vectorstore"
)

// App holds the components built from one configuration.
type App struct {
	Config   *config.Config
	Embedder embedding.Embedder
	Index    *index.Manager
	Tools    *tools.Registry
	log      *slog.Logger
}

// NewApp opens the configured collection. The generation provider is only
// built by Agent, so ingestion and search work without LLM credentials.
func NewApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	emb, err := embedding.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	store, err := vectorstore.New(ctx, cfg.VectorDB, emb)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	manifestDir := ""
	if cfg.VectorDB.Type != config.VectorDBMemory {
		manifestDir = cfg.VectorDB.PersistDirectory
	}
	m, err := index.New(store, emb, index.Options{
		Collection:     cfg.VectorDB.CollectionName,
		ManifestDir:    manifestDir,
		TopK:           cfg.Retrieval.TopK,
		RelevanceFloor: cfg.Retrieval.RelevanceFloor,
		BatchSize:      cfg.Embeddings.BatchSize,
		Concurrency:    cfg.Embeddings.Concurrency,
		Logger:         log,
	})
	if err != nil {
		return nil, err
	}
	reg, err := tools.NewRegistry(cfg.Agent.CallTimeout, tools.NewSearchTool(m, cfg.Retrieval.TopK), tools.NewStatsTool(m))
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, Embedder: emb, Index: m, Tools: reg, log: log}, nil
}

// Ingestor builds the ingestion pipeline.
func (a *App) Ingestor(rep progress.Reporter) (*Ingestor, error) {
	cc := a.Config.Chunking
	c, err := chunker.New(
		chunker.WithChunkSize(cc.ChunkSize),
		chunker.WithOverlap(cc.ChunkOverlap),
		chunker.WithSeparators(cc.Separators),
		chunker.WithCleaning(cc.Clean),
	)
	if err != nil {
		return nil, err
	}
	l := loader.New(loader.WithExclude(a.Config.Documents.Exclude...), loader.WithLogger(a.log))
	return NewIngestor(l, c, a.Index, rep, a.log), nil
}

// Agent builds an orchestrator backed by the configured generation provider.
func (a *App) Agent(ctx context.Context) (*agent.Orchestrator, error) {
	provider, err := llm.New(ctx, a.Config, a.log)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	return a.AgentWith(provider), nil
}

// AgentWith builds an orchestrator on an existing provider.
func (a *App) AgentWith(provider llm.Provider) *agent.Orchestrator {
	lc := a.Config.LLM
	return agent.New(
		agent.NewLLMPlanner(provider, lc.Temperature, lc.MaxTokens),
		agent.NewLLMSynthesizer(provider, lc.Temperature, lc.MaxTokens),
		a.Tools,
		agent.NewMemory(a.Config.Agent.MemoryTurns),
		agent.Options{
			MaxIterations:  a.Config.Agent.MaxIterations,
			RelevanceFloor: a.Config.Retrieval.RelevanceFloor,
			Logger:         a.log,
		},
	)
}
