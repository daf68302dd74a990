package memstore

import (
	"context"
	"errors"
	"sync"

	"docrag/internal/domain"
	"docrag/internal/port"
)

var _ port.DocumentStore = (*MemoryStore)(nil)

var errClosed = errors.New("store is closed")

// MemoryStore is an in-process DocumentStore. Rows live in insertion order.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []domain.Chunk
	files  map[string]int
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]int),
	}
}

func (s *MemoryStore) Exists(ctx context.Context, filePath string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "exists"); err != nil {
		return false, err
	}
	return s.files[filePath] > 0, nil
}

func (s *MemoryStore) Insert(ctx context.Context, chunk domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "insert"); err != nil {
		return err
	}
	if len(s.chunks) > 0 && len(s.chunks[0].Embedding) != len(chunk.Embedding) {
		return &domain.StoreError{Op: "insert", Err: domain.ErrDimensionMismatch}
	}

	chunk.Embedding = append([]float32(nil), chunk.Embedding...)
	s.chunks = append(s.chunks, chunk)
	s.files[chunk.FilePath]++
	return nil
}

// ScanAll returns copies of all rows; callers may modify them freely.
func (s *MemoryStore) ScanAll(ctx context.Context) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "scan"); err != nil {
		return nil, err
	}

	out := make([]domain.Chunk, len(s.chunks))
	for i, c := range s.chunks {
		c.Embedding = append([]float32(nil), c.Embedding...)
		out[i] = c
	}
	return out, nil
}

func (s *MemoryStore) DeleteByFile(ctx context.Context, filePath string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "delete"); err != nil {
		return 0, err
	}

	kept := s.chunks[:0]
	deleted := 0
	for _, c := range s.chunks {
		if c.FilePath == filePath {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	clear(s.chunks[len(kept):])
	s.chunks = kept
	delete(s.files, filePath)
	return deleted, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "count"); err != nil {
		return 0, err
	}
	return len(s.chunks), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return &domain.StoreError{Op: op, Err: err}
	}
	if s.closed {
		return &domain.StoreError{Op: op, Err: errClosed}
	}
	return nil
}
