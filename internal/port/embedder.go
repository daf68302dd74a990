package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns the embedding of text. Implementations must be
	// deterministic for identical input and must never return a zero vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
