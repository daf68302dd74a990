package retriever

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"docrag/internal/domain"
	"docrag/internal/port"
)

var _ port.Retriever = (*SemanticRetriever)(nil)

// DefaultTopK is used when neither the query nor the retriever sets one.
const DefaultTopK = 5

// SemanticRetriever ranks every stored chunk by cosine similarity to the
// query embedding. It scans the whole store on each search.
type SemanticRetriever struct {
	store    port.DocumentStore
	embedder port.Embedder
	topK     int
}

func NewSemanticRetriever(store port.DocumentStore, embedder port.Embedder, topK int) *SemanticRetriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &SemanticRetriever{
		store:    store,
		embedder: embedder,
		topK:     topK,
	}
}

// Search returns at most query.TopK chunks passing query.Filters, in
// descending score order. Equal scores keep store order. Rows whose
// vectors cannot be scored are left out.
func (r *SemanticRetriever) Search(ctx context.Context, query domain.Query) ([]domain.ScoredChunk, error) {
	k := query.TopK
	if k <= 0 {
		k = r.topK
	}

	queryVec, err := r.embedder.Embed(ctx, query.Text)
	if err != nil {
		var embErr *domain.EmbeddingError
		if !errors.As(err, &embErr) {
			err = &domain.EmbeddingError{Model: r.embedder.ModelName(), Err: err}
		}
		return nil, err
	}
	if isZero(queryVec) {
		return nil, &domain.DegenerateVectorError{}
	}

	rows, err := r.store.ScanAll(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredChunk, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if !query.Filters.Match(row) {
			continue
		}

		score, err := scoreRow(queryVec, row)
		if err != nil {
			skipped++
			slog.Debug("excluding unscorable chunk", "filepath", row.FilePath, "error", err)
			continue
		}
		scored = append(scored, domain.ScoredChunk{Chunk: row, Score: score})
	}
	if skipped > 0 {
		slog.Warn("chunks excluded from ranking", "count", skipped)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// scoreRow scores one stored chunk against a non-zero query vector. A
// degenerate result names the chunk's file.
func scoreRow(queryVec []float32, row domain.Chunk) (float64, error) {
	score, err := CosineSimilarity(queryVec, row.Embedding)
	var degenerate *domain.DegenerateVectorError
	if errors.As(err, &degenerate) {
		degenerate.FilePath = row.FilePath
	}
	return score, err
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
