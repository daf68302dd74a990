package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"docrag/config"
	"docrag/internal/adapter/memstore"
	"docrag/internal/domain"
	"docrag/internal/port"
)

func chunk(path, content string, vec ...float32) domain.Chunk {
	return domain.Chunk{
		Category:  "Finance",
		Year:      "2023",
		Content:   content,
		Embedding: vec,
		FilePath:  path,
	}
}

// exerciseStore runs the behaviour every DocumentStore must share.
func exerciseStore(t *testing.T, s port.DocumentStore) {
	t.Helper()
	ctx := context.Background()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	all, err := s.ScanAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	ok, err := s.Exists(ctx, "/docs/a.docx")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Insert(ctx, chunk("/docs/a.docx", "a1", 1, 0, 0)))
	require.NoError(t, s.Insert(ctx, chunk("/docs/b.docx", "b1", 0, 1, 0)))
	require.NoError(t, s.Insert(ctx, chunk("/docs/a.docx", "a2 ünïcödé", 0, 0, 1)))

	ok, err = s.Exists(ctx, "/docs/a.docx")
	require.NoError(t, err)
	assert.True(t, ok)

	// exact match only
	ok, err = s.Exists(ctx, "/docs/a.doc")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err = s.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a1", all[0].Content)
	assert.Equal(t, "b1", all[1].Content)
	assert.Equal(t, "a2 ünïcödé", all[2].Content)
	assert.Equal(t, []float32{0, 0, 1}, all[2].Embedding)
	assert.Equal(t, "Finance", all[2].Category)
	assert.Equal(t, "2023", all[2].Year)
	assert.Equal(t, "/docs/a.docx", all[2].FilePath)

	err = s.Insert(ctx, chunk("/docs/c.docx", "wrong", 1, 2))
	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))

	deleted, err := s.DeleteByFile(ctx, "/docs/a.docx")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	ok, err = s.Exists(ctx, "/docs/a.docx")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deleted, err = s.DeleteByFile(ctx, "/docs/missing.docx")
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	// new rows go after existing ones
	require.NoError(t, s.Insert(ctx, chunk("/docs/a.docx", "a3", 1, 1, 0)))
	all, err = s.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b1", all[0].Content)
	assert.Equal(t, "a3", all[1].Content)
}

func TestBoltStore(t *testing.T) {
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestBoltStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	s, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, chunk("/docs/a.docx", "first", 1, 0)))
	require.NoError(t, s.Insert(ctx, chunk("/docs/a.docx", "second", 0, 1)))
	require.NoError(t, s.Close())

	s, err = NewBoltStore(path)
	require.NoError(t, err)
	defer s.Close()

	all, err := s.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].Content)
	assert.Equal(t, "second", all[1].Content)
}

func TestBoltStore_LockedByAnotherHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	held, err := NewBoltStore(path)
	require.NoError(t, err)
	defer held.Close()

	start := time.Now()
	_, err = NewBoltStoreWithTimeout(path, 50*time.Millisecond)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "open", storeErr.Op)
	assert.ErrorIs(t, err, bbolt.ErrTimeout)
	assert.Contains(t, err.Error(), "in use by another process")

	require.NoError(t, held.Close())
	s, err := NewBoltStoreWithTimeout(path, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestBoltStore_EmptiedStoreAcceptsNewDimension(t *testing.T) {
	ctx := context.Background()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Insert(ctx, chunk("/a", "x", 1, 0)))
	_, err = s.DeleteByFile(ctx, "/a")
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, chunk("/a", "x", 1, 0, 0)))
}

func TestBoltStore_CancelledContext(t *testing.T) {
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = s.Insert(ctx, chunk("/a", "x", 1))
	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "insert", storeErr.Op)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "index.sqlite"))
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestMemoryStore(t *testing.T) {
	s := memstore.NewMemoryStore()
	defer s.Close()

	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DOCRAG_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("DOCRAG_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Truncate(ctx))
	defer s.Truncate(ctx)

	exerciseStore(t, s)
}

func TestVectorBlobRoundTrip(t *testing.T) {
	v := []float32{0, -1.5, 3.25, 1e-7}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestMigrations(t *testing.T) {
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer s.Close()

	cfg := config.DefaultConfig()

	res, err := s.CheckMigration(cfg)
	require.NoError(t, err)
	assert.True(t, res.NeedsMigration)
	assert.False(t, res.NeedsRebuild)

	require.NoError(t, s.Migrate(cfg))

	res, err = s.CheckMigration(cfg)
	require.NoError(t, err)
	assert.False(t, res.NeedsMigration)
	assert.False(t, res.NeedsRebuild)

	changed := config.DefaultConfig()
	changed.Index.ChunkTokens = 250
	rebuild, reason, err := s.NeedsRebuild(changed)
	require.NoError(t, err)
	assert.True(t, rebuild)
	assert.NotEmpty(t, reason)
}

func TestMigrateV1AddsDimension(t *testing.T) {
	ctx := context.Background()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Insert(ctx, chunk("/a", "x", 1, 0, 0)))
	require.NoError(t, s.SetSchemaInfo(&SchemaInfo{Version: 1}))
	// v1 files never recorded the dimension
	require.NoError(t, s.DB().Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Delete(keyDimension)
	}))

	require.NoError(t, s.Migrate(config.DefaultConfig()))
	err = s.Insert(ctx, chunk("/b", "y", 1, 0))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer s.Close()

	cfg := config.DefaultConfig()
	require.NoError(t, s.Migrate(cfg))
	require.NoError(t, s.Insert(ctx, chunk("/a", "x", 1)))
	require.NoError(t, s.Clear())

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	ok, err := s.Exists(ctx, "/a")
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := s.GetSchemaInfo()
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, info.Version)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	s, err := Open(ctx, cfg, dir)
	require.NoError(t, err)
	require.IsType(t, &BoltStore{}, s)
	require.NoError(t, s.Close())
	assert.FileExists(t, filepath.Join(dir, ".docrag", "index.db"))

	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "chunks.sqlite"
	s, err = Open(ctx, cfg, dir)
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	cfg.Store.Driver = "memory"
	s, err = Open(ctx, cfg, dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	cfg.Store.Driver = "postgres"
	cfg.Store.DSN = ""
	_, err = Open(ctx, cfg, dir)
	assert.Error(t, err)

	cfg.Store.Driver = "cassandra"
	_, err = Open(ctx, cfg, dir)
	assert.Error(t, err)
}
