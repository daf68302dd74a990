package port

import (
	"context"

	"docrag/internal/domain"
)

// DocumentStore owns the persisted chunk rows. Every operation is a short,
// independent read or write; there are no transactions spanning a file.
type DocumentStore interface {
	// Exists reports whether any chunk was stored for filePath (exact match).
	Exists(ctx context.Context, filePath string) (bool, error)

	// Insert stores a single chunk row.
	Insert(ctx context.Context, chunk domain.Chunk) error

	// ScanAll returns every stored chunk in insertion order.
	ScanAll(ctx context.Context) ([]domain.Chunk, error)

	// DeleteByFile removes all chunks of filePath and returns how many were removed.
	DeleteByFile(ctx context.Context, filePath string) (int, error)

	Count(ctx context.Context) (int, error)

	Close() error
}
