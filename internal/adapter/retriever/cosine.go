package retriever

import (
	"fmt"
	"math"

	"docrag/internal/domain"
)

// CosineSimilarity returns dot(a,b) / (|a| * |b|). A zero-norm operand
// yields *domain.DegenerateVectorError and differing lengths yield
// domain.ErrDimensionMismatch; a score is never NaN.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, &domain.DegenerateVectorError{}
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
