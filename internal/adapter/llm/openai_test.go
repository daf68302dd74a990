package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/config"
)

func TestOpenAIGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-chat", req.Model)
		assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "say hi", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": "hi"}, "finish_reason": "stop"},
			},
		})
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("sk-test", "test-chat", srv.URL, 0, 5*time.Second)
	out, err := g.Generate(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
	assert.Equal(t, "test-chat", g.ModelName())
}

func TestOpenAIGenerator_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("sk-test", "m", srv.URL, 10, time.Second)
	_, err := g.Generate(context.Background(), "p")
	assert.Error(t, err)
}

func TestNew_RequiresKeyWithoutBaseURL(t *testing.T) {
	t.Setenv("DOCRAG_TEST_GEN_KEY", "")

	_, err := New(config.GenerationConfig{APIKeyEnv: "DOCRAG_TEST_GEN_KEY", Model: "m"})
	assert.Error(t, err)

	g, err := New(config.GenerationConfig{APIKeyEnv: "DOCRAG_TEST_GEN_KEY", Model: "m", BaseURL: "http://localhost:11434/v1"})
	require.NoError(t, err)
	assert.Equal(t, "m", g.ModelName())
}
