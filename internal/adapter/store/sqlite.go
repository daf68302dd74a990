package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	_ "modernc.org/sqlite" // SQLite driver

	"docrag/internal/domain"
	"docrag/internal/port"
)

var _ port.DocumentStore = (*SQLiteStore)(nil)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category TEXT NOT NULL,
		year TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		filepath TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_filepath ON documents(filepath);
`

// SQLiteStore keeps chunks in a single SQLite file. Embeddings are
// stored as little-endian float32 blobs.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &domain.StoreError{Op: "open", Err: fmt.Errorf("opening database: %w", err)}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, &domain.StoreError{Op: "open", Err: fmt.Errorf("creating documents table: %w", err)}
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Path() string {
	return s.path
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes, not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, filePath string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM documents WHERE filepath = ?)", filePath,
	).Scan(&exists)
	if err != nil {
		return false, &domain.StoreError{Op: "exists", Err: err}
	}
	return exists, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, chunk domain.Chunk) error {
	var size int
	err := s.db.QueryRowContext(ctx,
		"SELECT length(embedding) FROM documents ORDER BY id LIMIT 1",
	).Scan(&size)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return &domain.StoreError{Op: "insert", Err: err}
	case size != 4*len(chunk.Embedding):
		return &domain.StoreError{Op: "insert", Err: domain.ErrDimensionMismatch}
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (category, year, content, embedding, filepath) VALUES (?, ?, ?, ?, ?)",
		chunk.Category, chunk.Year, chunk.Content, encodeVector(chunk.Embedding), chunk.FilePath,
	)
	if err != nil {
		return &domain.StoreError{Op: "insert", Err: err}
	}
	return nil
}

func (s *SQLiteStore) ScanAll(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT category, year, content, embedding, filepath FROM documents ORDER BY id",
	)
	if err != nil {
		return nil, &domain.StoreError{Op: "scan", Err: err}
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var (
			chunk domain.Chunk
			blob  []byte
		)
		if err := rows.Scan(&chunk.Category, &chunk.Year, &chunk.Content, &blob, &chunk.FilePath); err != nil {
			return nil, &domain.StoreError{Op: "scan", Err: err}
		}
		if chunk.Embedding, err = decodeVector(blob); err != nil {
			return nil, &domain.StoreError{Op: "scan", Err: err}
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "scan", Err: err}
	}
	return chunks, nil
}

func (s *SQLiteStore) DeleteByFile(ctx context.Context, filePath string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE filepath = ?", filePath)
	if err != nil {
		return 0, &domain.StoreError{Op: "delete", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &domain.StoreError{Op: "delete", Err: err}
	}
	return int(n), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM documents").Scan(&n); err != nil {
		return 0, &domain.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
