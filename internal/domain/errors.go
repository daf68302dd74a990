package domain

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned by stores for a chunk whose embedding
// length differs from the rows already stored.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ExtractionError reports a malformed or unreadable source document.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError reports a failed call to the embedding model or an
// unusable vector returned by it.
type EmbeddingError struct {
	Model string
	Err   error
}

func (e *EmbeddingError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("embedding: %v", e.Err)
	}
	return fmt.Sprintf("embedding (%s): %v", e.Model, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// StoreError reports a persistence failure for a single store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// DegenerateVectorError reports a zero-norm vector met during scoring.
type DegenerateVectorError struct {
	FilePath string
}

func (e *DegenerateVectorError) Error() string {
	if e.FilePath == "" {
		return "degenerate vector: zero norm"
	}
	return fmt.Sprintf("degenerate vector: zero norm embedding for %s", e.FilePath)
}
