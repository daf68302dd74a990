package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/adapter/analyzer"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/extractor"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/memstore"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// countingEmbedder counts calls and fails for texts containing failOn.
type countingEmbedder struct {
	inner  port.Embedder
	calls  atomic.Int64
	failOn string
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, &domain.EmbeddingError{Model: "test", Err: errors.New("model unavailable")}
	}
	return e.inner.Embed(ctx, text)
}

func (e *countingEmbedder) Dimension() int    { return e.inner.Dimension() }
func (e *countingEmbedder) ModelName() string { return e.inner.ModelName() }

// failingExistsStore fails Exists for one path.
type failingExistsStore struct {
	*memstore.MemoryStore
	path string
}

func (s *failingExistsStore) Exists(ctx context.Context, filePath string) (bool, error) {
	if filePath == s.path {
		return false, &domain.StoreError{Op: "exists", Err: errors.New("connection reset")}
	}
	return s.MemoryStore.Exists(ctx, filePath)
}

// unreadableEntryWalker reports one extra entry that could not be read,
// placed at index at of the wrapped walker's result.
type unreadableEntryWalker struct {
	port.FileWalker
	at    int
	entry port.FileInfo
}

func (w *unreadableEntryWalker) Walk(root string) ([]port.FileInfo, error) {
	files, err := w.FileWalker.Walk(root)
	if err != nil {
		return nil, err
	}
	return slices.Insert(files, w.at, w.entry), nil
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

type fixture struct {
	root     string
	store    port.DocumentStore
	embedder *countingEmbedder
	ingest   *IngestUseCase
}

func newFixture(t *testing.T, store port.DocumentStore, maxTokens, workers int) *fixture {
	t.Helper()
	if store == nil {
		store = memstore.NewMemoryStore()
	}
	emb := &countingEmbedder{inner: embedding.NewHashEmbedder(32)}
	uc := NewIngestUseCase(
		store,
		fs.NewWalker([]string{"**/*.txt"}, nil),
		extractor.NewPlainText(),
		chunker.NewTokenChunker(maxTokens, analyzer.NewWordTokenizer()),
		emb,
		workers,
	)
	return &fixture{root: t.TempDir(), store: store, embedder: emb, ingest: uc}
}

func TestDeriveCategoryYear(t *testing.T) {
	root := filepath.FromSlash("/data/docs")
	tests := []struct {
		rel      string
		category string
		year     string
	}{
		{"x.docx", "Unknown", "Unknown"},
		{"A/x.docx", "A", "Unknown"},
		{"A/2023/x.docx", "A", "2023"},
		{"A/2023/deep/x.docx", "A", "2023"},
	}
	for _, tt := range tests {
		c, y := DeriveCategoryYear(root, filepath.Join(root, filepath.FromSlash(tt.rel)))
		assert.Equal(t, tt.category, c, tt.rel)
		assert.Equal(t, tt.year, y, tt.rel)
	}
}

func TestIngest_InsertsChunksWithMetadata(t *testing.T) {
	f := newFixture(t, nil, 4, 1)
	path := writeFile(t, f.root, "Finance/2023/report.txt", "one two three four five")

	summary, err := f.ingest.Ingest(context.Background(), f.root)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FilesProcessed)
	assert.Equal(t, 0, summary.FilesSkipped)
	assert.Equal(t, 3, summary.ChunksInserted)
	assert.Empty(t, summary.Errors)
	assert.NotEqual(t, uuid.Nil, summary.RunID)

	rows, err := f.store.ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"one two ", "three four ", "five"}, []string{rows[0].Content, rows[1].Content, rows[2].Content})
	for _, r := range rows {
		assert.Equal(t, "Finance", r.Category)
		assert.Equal(t, "2023", r.Year)
		assert.Equal(t, path, r.FilePath)
		assert.Len(t, r.Embedding, 32)
	}
}

func TestIngest_Idempotent(t *testing.T) {
	f := newFixture(t, nil, 4, 1)
	writeFile(t, f.root, "A/2023/a.txt", "alpha beta gamma")
	writeFile(t, f.root, "B/b.txt", "delta epsilon")

	first, err := f.ingest.Ingest(context.Background(), f.root)
	require.NoError(t, err)
	assert.Equal(t, 2, first.FilesProcessed)
	callsAfterFirst := f.embedder.calls.Load()
	countAfterFirst, _ := f.store.Count(context.Background())

	second, err := f.ingest.Ingest(context.Background(), f.root)
	require.NoError(t, err)
	assert.Equal(t, 0, second.FilesProcessed)
	assert.Equal(t, 2, second.FilesSkipped)
	assert.Equal(t, 0, second.ChunksInserted)
	assert.NotEqual(t, first.RunID, second.RunID)

	assert.Equal(t, callsAfterFirst, f.embedder.calls.Load(), "skipped files must not be embedded")
	countAfterSecond, _ := f.store.Count(context.Background())
	assert.Equal(t, countAfterFirst, countAfterSecond)
}

func TestIngest_Incremental(t *testing.T) {
	f := newFixture(t, nil, 4, 1)
	writeFile(t, f.root, "A/2023/a.txt", "alpha beta gamma")

	_, err := f.ingest.Ingest(context.Background(), f.root)
	require.NoError(t, err)
	before, _ := f.store.Count(context.Background())

	writeFile(t, f.root, "A/2024/new.txt", "fresh words here")
	summary, err := f.ingest.Ingest(context.Background(), f.root)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FilesProcessed)
	assert.Equal(t, 1, summary.FilesSkipped)

	after, _ := f.store.Count(context.Background())
	assert.Equal(t, before+summary.ChunksInserted, after)
}

func TestIngest_FailureIsolation(t *testing.T) {
	f := newFixture(t, nil, 100, 1)
	f.embedder.failOn = "poison"

	writeFile(t, f.root, "A/1.txt", "first good file")
	bad := writeFile(t, f.root, "A/2.txt", "poison pill")
	writeFile(t, f.root, "A/3.txt", "third good file")

	summary, err := f.ingest.Ingest(context.Background(), f.root)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.FilesProcessed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, bad, summary.Errors[0].FilePath)

	var embErr *domain.EmbeddingError
	assert.ErrorAs(t, summary.Errors[0].Cause, &embErr)
}

func TestIngest_ErrorsInWalkOrder(t *testing.T) {
	f := newFixture(t, nil, 100, 4)
	f.embedder.failOn = "poison"

	var want []string
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		want = append(want, writeFile(t, f.root, "X/"+name+".txt", "poison "+name))
	}

	summary, err := f.ingest.Ingest(context.Background(), f.root)
	require.NoError(t, err)

	var got []string
	for _, e := range summary.Errors {
		got = append(got, e.FilePath)
	}
	assert.Equal(t, want, got)
}

func TestIngest_ZeroChunkFile(t *testing.T) {
	f := newFixture(t, nil, 10, 1)
	writeFile(t, f.root, "A/2023/blank.txt", "\n   \n\n")

	summary, err := f.ingest.Ingest(context.Background(), f.root)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FilesProcessed)
	assert.Equal(t, 0, summary.ChunksInserted)
	assert.Empty(t, summary.Errors)
}

func TestIngest_WhitespaceOnlyWindowIsSkipped(t *testing.T) {
	f := newFixture(t, nil, 3, 1)
	path := writeFile(t, f.root, "A/2023/trailing.txt", "alpha beta   ")

	summary, err := f.ingest.Ingest(context.Background(), f.root)
	require.NoError(t, err)

	assert.Empty(t, summary.Errors)
	assert.Equal(t, 1, summary.FilesProcessed)
	assert.Equal(t, 1, summary.ChunksInserted)

	rows, err := f.store.ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alpha beta", rows[0].Content)
	assert.Equal(t, path, rows[0].FilePath)
}

func TestIngest_UnreadableEntryIsReported(t *testing.T) {
	f := newFixture(t, nil, 10, 2)
	writeFile(t, f.root, "A/a.txt", "alpha")
	writeFile(t, f.root, "C/c.txt", "gamma")

	locked := filepath.Join(f.root, "B")
	f.ingest.walker = &unreadableEntryWalker{
		FileWalker: f.ingest.walker,
		at:         1,
		entry:      port.FileInfo{Path: locked, RelPath: "B", Err: os.ErrPermission},
	}

	var last int
	f.ingest.OnProgress(func(done, n int, path string) { last = done })

	summary, err := f.ingest.Ingest(context.Background(), f.root)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.FilesProcessed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, locked, summary.Errors[0].FilePath)
	assert.ErrorIs(t, summary.Errors[0].Cause, os.ErrPermission)
	assert.Equal(t, 3, last)
}

func TestIngest_ExistsFailureIsNotEmbedded(t *testing.T) {
	base := memstore.NewMemoryStore()
	f := newFixture(t, nil, 10, 1)
	bad := writeFile(t, f.root, "A/bad.txt", "never embedded")
	writeFile(t, f.root, "A/good.txt", "embedded once")

	f.store = &failingExistsStore{MemoryStore: base, path: bad}
	f.ingest.store = f.store

	summary, err := f.ingest.Ingest(context.Background(), f.root)
	require.NoError(t, err)

	require.Len(t, summary.Errors, 1)
	assert.Equal(t, bad, summary.Errors[0].FilePath)
	var storeErr *domain.StoreError
	assert.ErrorAs(t, summary.Errors[0].Cause, &storeErr)
	assert.Equal(t, int64(1), f.embedder.calls.Load())
}

func TestIngest_MissingRoot(t *testing.T) {
	f := newFixture(t, nil, 10, 1)
	_, err := f.ingest.Ingest(context.Background(), filepath.Join(f.root, "missing"))
	assert.Error(t, err)
}

func TestIngest_Cancelled(t *testing.T) {
	f := newFixture(t, nil, 10, 1)
	writeFile(t, f.root, "A/a.txt", "some words")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := f.ingest.Ingest(ctx, f.root)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)

	n, _ := f.store.Count(context.Background())
	assert.Equal(t, 0, n)
}

func TestIngest_ProgressAndStoreChange(t *testing.T) {
	f := newFixture(t, nil, 10, 2)
	writeFile(t, f.root, "A/a.txt", "alpha")
	writeFile(t, f.root, "A/b.txt", "beta")
	writeFile(t, f.root, "A/c.txt", "gamma")

	var (
		mu    sync.Mutex
		seen  []int
		total int
	)
	f.ingest.OnProgress(func(done, n int, path string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, done)
		total = n
	})
	changes := 0
	f.ingest.OnStoreChange(func() { changes++ })

	_, err := f.ingest.Ingest(context.Background(), f.root)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, changes)

	// nothing new, no invalidation
	_, err = f.ingest.Ingest(context.Background(), f.root)
	require.NoError(t, err)
	assert.Equal(t, 1, changes)
}

func TestReingest_ReplacesRows(t *testing.T) {
	f := newFixture(t, nil, 2, 1)
	path := writeFile(t, f.root, "A/2023/a.txt", "one two three")

	_, err := f.ingest.Ingest(context.Background(), f.root)
	require.NoError(t, err)
	before, _ := f.store.Count(context.Background())

	require.NoError(t, os.WriteFile(path, []byte("one"), 0644))
	summary, err := f.ingest.Reingest(context.Background(), f.root, path)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesProcessed)
	assert.Equal(t, 1, summary.ChunksInserted)

	after, _ := f.store.Count(context.Background())
	assert.Less(t, after, before)

	rows, _ := f.store.ScanAll(context.Background())
	require.Len(t, rows, 1)
	assert.Equal(t, "one", rows[0].Content)
	assert.Equal(t, "A", rows[0].Category)
	assert.Equal(t, "2023", rows[0].Year)
}
