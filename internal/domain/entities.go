package domain

import (
	"github.com/google/uuid"
)

// UnknownSegment is used for a category or year that cannot be derived
// from a file's location under the document root.
const UnknownSegment = "Unknown"

// NoRelevantDocuments is the fixed answer returned when retrieval yields
// no context for a question.
const NoRelevantDocuments = "No relevant documents found."

// Chunk is one persisted row: a bounded slice of a document's text together
// with its embedding. FilePath identifies the source file, not the chunk.
type Chunk struct {
	Category  string    `json:"category"`
	Year      string    `json:"year"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
	FilePath  string    `json:"filepath"`
}

type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Filters restrict retrieval to rows with matching metadata.
// Empty fields match everything.
type Filters struct {
	Category string `json:"category,omitempty"`
	Year     string `json:"year,omitempty"`
}

// Match reports whether the chunk passes the filters.
func (f Filters) Match(c Chunk) bool {
	if f.Category != "" && f.Category != c.Category {
		return false
	}
	if f.Year != "" && f.Year != c.Year {
		return false
	}
	return true
}

type Query struct {
	Text    string  `json:"text"`
	Filters Filters `json:"filters"`
	TopK    int     `json:"top_k"`
}

// FileError records why a single file could not be ingested.
type FileError struct {
	FilePath string
	Cause    error
}

// IngestSummary describes the outcome of one ingestion run.
type IngestSummary struct {
	RunID          uuid.UUID
	FilesProcessed int
	FilesSkipped   int
	ChunksInserted int
	Errors         []FileError
}

// Answer is the response of the query surface.
type Answer struct {
	Answer  string        `json:"answer"`
	Sources []ScoredChunk `json:"sources,omitempty"`
}
