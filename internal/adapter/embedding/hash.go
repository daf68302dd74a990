package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"docrag/internal/domain"
)

// HashEmbedder is a deterministic, offline embedder based on feature
// hashing of lower-cased words. Texts sharing words get similar vectors,
// which is enough for local runs and tests.
type HashEmbedder struct {
	dimension int
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashEmbedder{dimension: dimension}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.EmbeddingError{Model: e.ModelName(), Err: err}
	}

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		// punctuation-only text still needs a usable vector
		words = strings.Fields(text)
	}
	if len(words) == 0 {
		return nil, &domain.EmbeddingError{Model: e.ModelName(), Err: errors.New("cannot embed blank text")}
	}

	vec := make([]float32, e.dimension)
	for _, w := range words {
		h := fnv.New64a()
		h.Write([]byte(w))
		sum := h.Sum64()

		idx := int(sum % uint64(e.dimension))
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// every word cancelled out; fall back to a single bucket
		vec[0] = 1
		return vec, nil
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}

	return vec, nil
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return "hash"
}
