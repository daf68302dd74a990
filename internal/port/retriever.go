package port

import (
	"context"

	"docrag/internal/domain"
)

// Retriever ranks stored chunks against a query.
type Retriever interface {
	// Search returns at most query.TopK chunks ordered by descending score.
	Search(ctx context.Context, query domain.Query) ([]domain.ScoredChunk, error)
}
