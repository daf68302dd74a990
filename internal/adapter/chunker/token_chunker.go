package chunker

import (
	"iter"
	"strings"

	"docrag/internal/port"
)

// DefaultMaxTokens is the window size used when none is configured.
const DefaultMaxTokens = 500

// TokenChunker cuts text into contiguous, non-overlapping windows of
// maxTokens tokens. Only the last window may be shorter.
type TokenChunker struct {
	maxTokens int
	tokenizer port.Tokenizer
}

func NewTokenChunker(maxTokens int, tokenizer port.Tokenizer) *TokenChunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &TokenChunker{
		maxTokens: maxTokens,
		tokenizer: tokenizer,
	}
}

// Chunk returns the chunks of text. Tokenization happens each time the
// sequence is ranged over, so the sequence can be consumed repeatedly.
func (c *TokenChunker) Chunk(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		tokens := c.tokenizer.Tokenize(text)
		for start := 0; start < len(tokens); start += c.maxTokens {
			end := min(start+c.maxTokens, len(tokens))
			if !yield(strings.Join(tokens[start:end], "")) {
				return
			}
		}
	}
}

// All materializes every chunk of text.
func (c *TokenChunker) All(text string) []string {
	var chunks []string
	for chunk := range c.Chunk(text) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func (c *TokenChunker) MaxTokens() int {
	return c.maxTokens
}
