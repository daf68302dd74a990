package cli

import (
	"context"
	"fmt"
	"time"

	"docrag/config"
	"docrag/internal/adapter/analyzer"
	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/extractor"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/llm"
	"docrag/internal/adapter/retriever"
	"docrag/internal/adapter/store"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

// app holds the collaborators shared by the commands. Only the parts a
// command asks for are built.
type app struct {
	cfg      *config.Config
	store    port.DocumentStore
	embedder port.Embedder
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := store.Open(ctx, cfg, GetRootDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	emb, err := embedding.New(cfg.Embedding)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &app{cfg: cfg, store: st, embedder: emb}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) walker() *fs.Walker {
	return fs.NewWalker(a.cfg.Index.Includes, a.cfg.Index.Excludes)
}

func (a *app) ingestUseCase() (*usecase.IngestUseCase, error) {
	tok, err := analyzer.New(a.cfg.Index.Tokenizer, a.cfg.Index.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}

	return usecase.NewIngestUseCase(
		a.store,
		a.walker(),
		extractor.Default(),
		chunker.NewTokenChunker(a.cfg.Index.ChunkTokens, tok),
		a.embedder,
		a.cfg.Index.Workers,
	), nil
}

// retriever returns the semantic retriever, wrapped in a query cache when
// one is configured.
func (a *app) retriever() (port.Retriever, *cache.CachedRetriever) {
	sem := retriever.NewSemanticRetriever(a.store, a.embedder, a.cfg.Retrieve.TopK)
	if a.cfg.Retrieve.CacheSize <= 0 {
		return sem, nil
	}
	ttl := time.Duration(a.cfg.Retrieve.CacheTTLSeconds) * time.Second
	cached := cache.NewCachedRetriever(sem, cache.NewQueryCache(a.cfg.Retrieve.CacheSize, ttl), a.store.Count)
	return cached, cached
}

func (a *app) retrieveUseCase() *usecase.RetrieveUseCase {
	r, _ := a.retriever()
	return usecase.NewRetrieveUseCase(r, a.cfg.Retrieve.MinScore)
}

func (a *app) answerUseCase(retrieve *usecase.RetrieveUseCase) (*usecase.AnswerUseCase, error) {
	gen, err := llm.New(a.cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	return usecase.NewAnswerUseCase(retrieve, gen), nil
}
