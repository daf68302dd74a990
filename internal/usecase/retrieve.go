package usecase

import (
	"context"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// RetrieveUseCase handles search and retrieval operations.
type RetrieveUseCase struct {
	retriever         port.Retriever
	minScoreThreshold float64 // Filter results below this score (0 = disabled)
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(retriever port.Retriever, minScoreThreshold float64) *RetrieveUseCase {
	return &RetrieveUseCase{
		retriever:         retriever,
		minScoreThreshold: minScoreThreshold,
	}
}

// Retrieve returns the ranked chunks for the query.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query domain.Query) ([]domain.ScoredChunk, error) {
	results, err := u.retriever.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if u.minScoreThreshold > 0 {
		results = u.filterByThreshold(results)
	}

	return results, nil
}

// filterByThreshold removes results below the minimum score threshold.
// Results may be shared with a cache, so a new slice is built.
func (u *RetrieveUseCase) filterByThreshold(results []domain.ScoredChunk) []domain.ScoredChunk {
	filtered := make([]domain.ScoredChunk, 0, len(results))
	for _, r := range results {
		if r.Score >= u.minScoreThreshold {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// ScoredChunkResult is a simplified result for CLI and API output.
type ScoredChunkResult struct {
	Category string  `json:"category"`
	Year     string  `json:"year"`
	FilePath string  `json:"filepath"`
	Score    float64 `json:"score"`
	Text     string  `json:"text,omitempty"`
}

// ToResults flattens ranked chunks for output. withText controls whether
// chunk content is included.
func ToResults(chunks []domain.ScoredChunk, withText bool) []ScoredChunkResult {
	results := make([]ScoredChunkResult, len(chunks))
	for i, sc := range chunks {
		results[i] = ScoredChunkResult{
			Category: sc.Chunk.Category,
			Year:     sc.Chunk.Year,
			FilePath: sc.Chunk.FilePath,
			Score:    sc.Score,
		}
		if withText {
			results[i].Text = sc.Chunk.Content
		}
	}
	return results
}
