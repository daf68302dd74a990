package port

import "iter"

// Chunker splits extracted text into bounded windows of tokens.
type Chunker interface {
	// Chunk returns a restartable sequence of chunks in document order.
	Chunk(text string) iter.Seq[string]
}
