package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docrag/internal/domain"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension atomic.Int64
}

func NewOpenAIEmbedder(apiKeyEnv, model string, timeout time.Duration) (*OpenAIEmbedder, error) {
	return NewOpenAICompatibleEmbedder(apiKeyEnv, model, "https://api.openai.com/v1", timeout)
}

func NewJinaEmbedder(apiKeyEnv, model string, timeout time.Duration) (*OpenAIEmbedder, error) {
	return NewOpenAICompatibleEmbedder(apiKeyEnv, model, "https://api.jina.ai/v1", timeout)
}

// NewOllamaEmbedder talks to a local Ollama server through its OpenAI
// compatible API. No API key is required.
func NewOllamaEmbedder(model, baseURL string, timeout time.Duration) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	return newEmbedder("ollama", model, baseURL, timeout)
}

func NewOpenAICompatibleEmbedder(apiKeyEnv, model, baseURL string, timeout time.Duration) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	return newEmbedder(apiKey, model, baseURL, timeout), nil
}

func newEmbedder(apiKey, model, baseURL string, timeout time.Duration) *OpenAIEmbedder {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	e := &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
	e.dimension.Store(int64(knownDimension(model)))
	return e
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, &domain.EmbeddingError{Model: e.model, Err: errors.New("cannot embed empty text")}
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, &domain.EmbeddingError{Model: e.model, Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, &domain.EmbeddingError{Model: e.model, Err: errors.New("no embedding data returned from API")}
	}

	vec := resp.Data[0].Embedding
	if err := checkVector(vec); err != nil {
		return nil, &domain.EmbeddingError{Model: e.model, Err: err}
	}
	e.dimension.CompareAndSwap(0, int64(len(vec)))

	return vec, nil
}

// Dimension returns the embedding dimension. For models it does not know,
// the value is learned from the first response.
func (e *OpenAIEmbedder) Dimension() int {
	return int(e.dimension.Load())
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

func knownDimension(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "jina-embeddings-v3":
		return 1024
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	default:
		return 0
	}
}

// checkVector rejects vectors that would make cosine similarity undefined.
func checkVector(vec []float32) error {
	if len(vec) == 0 {
		return errors.New("empty embedding vector")
	}
	for _, v := range vec {
		if v != 0 {
			return nil
		}
	}
	return errors.New("zero-norm embedding vector")
}
