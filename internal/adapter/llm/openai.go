package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docrag/config"
	"docrag/internal/port"
)

var _ port.Generator = (*OpenAIGenerator)(nil)

// DefaultMaxTokens bounds the length of a generated answer.
const DefaultMaxTokens = 512

// OpenAIGenerator answers prompts through an OpenAI-compatible chat
// completions endpoint.
type OpenAIGenerator struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewOpenAIGenerator(apiKey, model, baseURL string, maxTokens int, timeout time.Duration) *OpenAIGenerator {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIGenerator{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
	}
}

// New builds a generator from configuration. The API key is read from
// the configured environment variable; a local server may not need one.
func New(cfg config.GenerationConfig) (*OpenAIGenerator, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
	}
	return NewOpenAIGenerator(apiKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens,
		time.Duration(cfg.TimeoutSeconds)*time.Second), nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) ModelName() string {
	return g.model
}
