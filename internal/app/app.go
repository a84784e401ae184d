// Package app wires together configuration, the pipeline components,
// and the HTTP transport into one running application.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/reposync/internal/acquirer"
	"github.com/sevigo/reposync/internal/chunker"
	"github.com/sevigo/reposync/internal/config"
	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/db"
	"github.com/sevigo/reposync/internal/embedder"
	"github.com/sevigo/reposync/internal/gitutil"
	"github.com/sevigo/reposync/internal/llmclient"
	"github.com/sevigo/reposync/internal/logger"
	"github.com/sevigo/reposync/internal/rag"
	"github.com/sevigo/reposync/internal/repomanager"
	"github.com/sevigo/reposync/internal/server"
	"github.com/sevigo/reposync/internal/storage"
	"github.com/sevigo/reposync/internal/tokenizer"
	"github.com/sevigo/reposync/internal/vectorstore"
)

// App holds every long-lived component the running process needs to start
// and stop cleanly.
type App struct {
	Cfg       *config.Config
	RepoMgr   repomanager.RepositoryManager
	Engine    *rag.Engine
	GitClient *gitutil.Client

	logger *slog.Logger
	srv    *server.Server
	dbConn *db.DB
}

// New builds every component from cfg and returns a running App. The
// returned cleanup func (second value, paired with an error) closes the
// database connection if one was opened; the caller still must call
// App.Stop to stop the worker pool and HTTP server.
func New(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	log := logger.NewLogger(cfg.Logging, nil)

	var dbConn *db.DB
	var dbCleanup func()
	var persist repomanager.Registry
	if cfg.Database.Enabled {
		var err error
		dbConn, dbCleanup, err = db.NewDatabase(&cfg.Database)
		if err != nil {
			return nil, func() {}, fmt.Errorf("app: connect database: %w", err)
		}
		persist = storage.NewRegistryStore(dbConn.DB)
	} else {
		dbCleanup = func() {}
	}

	gitClient := gitutil.NewClient(log)

	acq := acquirer.New(acquirer.Config{
		MaxFileBytes:         cfg.Providers.MaxFileBytes,
		ExcludeGlobs:         cfg.Providers.ExcludeGlobs,
		BinaryExtensionAllow: cfg.Providers.BinaryExtensionAllow,
		CloneWorkDir:         cfg.Providers.CloneWorkDir,
		UserAgent:            cfg.Providers.UserAgent,
		RequestTimeoutSecs:   cfg.Providers.RequestTimeoutSecs,
	}, gitClient, log)

	tok, err := tokenizer.New()
	if err != nil {
		dbCleanup()
		return nil, func() {}, fmt.Errorf("app: create tokenizer: %w", err)
	}

	preset := chunker.PresetByName(cfg.Chunking.Preset)
	chunk := chunker.New(tok, func(kind core.FileKind) chunker.Preset {
		if kind == core.FileKindDoc {
			return chunker.PresetDocumentation
		}
		return preset
	})

	emb, err := embedder.New(ctx, embedder.Config{
		Kind:        embedder.Kind(cfg.AI.EmbedderProvider),
		Model:       cfg.AI.EmbedderModel,
		Dimension:   cfg.AI.EmbedderDim,
		OllamaURL:   cfg.AI.OllamaHost,
		GeminiKey:   cfg.AI.GeminiAPIKey,
		BatchSize:   cfg.AI.EmbedBatchSize,
		Concurrency: cfg.AI.EmbedConcurrency,
	})
	if err != nil {
		dbCleanup()
		return nil, func() {}, fmt.Errorf("app: create embedder: %w", err)
	}

	store, err := vectorstore.New(ctx, vectorstore.Config{
		Kind:       vectorstore.Kind(cfg.Storage.VectorStore),
		QdrantHost: cfg.Storage.QdrantHost,
		QdrantPort: cfg.Storage.QdrantPort,
		QdrantKey:  cfg.Storage.QdrantKey,
		QdrantTLS:  cfg.Storage.QdrantTLS,
		Embedder:   cfg.AI.EmbedderModel,
		Dimension:  cfg.AI.EmbedderDim,
	})
	if err != nil {
		dbCleanup()
		return nil, func() {}, fmt.Errorf("app: create vector store: %w", err)
	}

	repoMgr := repomanager.New(repomanager.Config{
		Workers:       cfg.Workers.ResolvedCount(),
		EmbedderModel: cfg.AI.EmbedderModel,
		Persist:       persist,
	}, acq, chunk, emb, store, log)

	gen, err := llmclient.New(ctx, llmclient.Config{
		Kind:      llmclient.Kind(cfg.AI.LLMProvider),
		Model:     cfg.AI.GeneratorModel,
		OllamaURL: cfg.AI.OllamaHost,
		GeminiKey: cfg.AI.GeminiAPIKey,
	})
	if err != nil {
		dbCleanup()
		return nil, func() {}, fmt.Errorf("app: create generator: %w", err)
	}

	engine, err := rag.New(repoMgr, emb, store, gen, tok, rag.Config{
		TopK:                 cfg.Retrieval.TopK,
		ScoreThreshold:       cfg.Retrieval.ScoreThreshold,
		Temperature:          cfg.AI.Temperature,
		MaxOutputTokens:      cfg.AI.MaxOutputTokens,
		ReservedOutputTokens: cfg.Retrieval.ReservedOutputTokens,
		MaxContextMessages:   cfg.Retrieval.MaxContextMessages,
		MaxContextChars:      cfg.Retrieval.MaxContextChars,
	})
	if err != nil {
		dbCleanup()
		return nil, func() {}, fmt.Errorf("app: create rag engine: %w", err)
	}

	srv := server.NewServer(ctx, cfg, repoMgr, engine, log)

	a := &App{
		Cfg:       cfg,
		RepoMgr:   repoMgr,
		Engine:    engine,
		GitClient: gitClient,
		logger:    log,
		srv:       srv,
		dbConn:    dbConn,
	}

	cleanup := func() {
		dbCleanup()
	}
	return a, cleanup, nil
}

// Start runs the HTTP server, blocking until it stops or fails.
func (a *App) Start() error {
	return a.srv.Start()
}

// Stop shuts the HTTP server down gracefully and stops the Repository
// Manager's worker pool.
func (a *App) Stop() error {
	err := a.srv.Stop()
	a.RepoMgr.Stop()
	return err
}
