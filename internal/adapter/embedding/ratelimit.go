package embedding

import (
	"context"

	"golang.org/x/time/rate"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// RateLimited wraps an embedder so that at most rps requests per second
// reach the model.
type RateLimited struct {
	next    port.Embedder
	limiter *rate.Limiter
}

func NewRateLimited(next port.Embedder, rps float64, burst int) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, &domain.EmbeddingError{Model: r.next.ModelName(), Err: err}
	}
	return r.next.Embed(ctx, text)
}

func (r *RateLimited) Dimension() int {
	return r.next.Dimension()
}

func (r *RateLimited) ModelName() string {
	return r.next.ModelName()
}
