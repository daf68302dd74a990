package embedding

import (
	"fmt"
	"time"

	"docrag/config"
	"docrag/internal/port"
)

// New builds the embedder selected by cfg.Provider, wrapped in a rate
// limiter when RequestsPerSecond is set.
func New(cfg config.EmbeddingConfig) (port.Embedder, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	var (
		embedder port.Embedder
		err      error
	)
	switch cfg.Provider {
	case "openai":
		if cfg.BaseURL != "" {
			embedder, err = NewOpenAICompatibleEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL, timeout)
		} else {
			embedder, err = NewOpenAIEmbedder(cfg.APIKeyEnv, cfg.Model, timeout)
		}
	case "jina":
		embedder, err = NewJinaEmbedder(cfg.APIKeyEnv, cfg.Model, timeout)
	case "ollama":
		embedder = NewOllamaEmbedder(cfg.Model, cfg.BaseURL, timeout)
	case "compatible":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("embedding provider %q requires base_url", cfg.Provider)
		}
		embedder, err = NewOpenAICompatibleEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL, timeout)
	case "hash":
		embedder = NewHashEmbedder(cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RequestsPerSecond > 0 {
		embedder = NewRateLimited(embedder, cfg.RequestsPerSecond, 1)
	}
	return embedder, nil
}
