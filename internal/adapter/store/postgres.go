package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"docrag/internal/domain"
	"docrag/internal/port"
)

var _ port.DocumentStore = (*PostgresStore)(nil)

const postgresSchema = `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS documents (
		id BIGSERIAL PRIMARY KEY,
		category TEXT NOT NULL,
		year TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding vector NOT NULL,
		filepath TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_filepath ON documents(filepath);
`

// PostgresStore keeps chunks in a pgvector-enabled Postgres table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	if connStr == "" {
		return nil, &domain.StoreError{Op: "open", Err: errors.New("postgres dsn is empty")}
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, &domain.StoreError{Op: "open", Err: err}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &domain.StoreError{Op: "open", Err: err}
	}

	s := &PostgresStore{pool: pool}
	if err := s.createTables(ctx); err != nil {
		pool.Close()
		return nil, &domain.StoreError{Op: "open", Err: err}
	}
	return s, nil
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

func (p *PostgresStore) Exists(ctx context.Context, filePath string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM documents WHERE filepath = $1)", filePath,
	).Scan(&exists)
	if err != nil {
		return false, &domain.StoreError{Op: "exists", Err: err}
	}
	return exists, nil
}

func (p *PostgresStore) Insert(ctx context.Context, chunk domain.Chunk) error {
	var dim int
	err := p.pool.QueryRow(ctx,
		"SELECT vector_dims(embedding) FROM documents ORDER BY id LIMIT 1",
	).Scan(&dim)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return &domain.StoreError{Op: "insert", Err: err}
	case dim != len(chunk.Embedding):
		return &domain.StoreError{Op: "insert", Err: domain.ErrDimensionMismatch}
	}

	query := `
	INSERT INTO documents (category, year, content, embedding, filepath)
	VALUES ($1, $2, $3, $4, $5)
	`
	_, err = p.pool.Exec(ctx, query,
		chunk.Category, chunk.Year, chunk.Content, pgvector.NewVector(chunk.Embedding), chunk.FilePath,
	)
	if err != nil {
		return &domain.StoreError{Op: "insert", Err: err}
	}
	return nil
}

func (p *PostgresStore) ScanAll(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT category, year, content, embedding, filepath FROM documents ORDER BY id",
	)
	if err != nil {
		return nil, &domain.StoreError{Op: "scan", Err: err}
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var (
			chunk     domain.Chunk
			embedding pgvector.Vector
		)
		if err := rows.Scan(&chunk.Category, &chunk.Year, &chunk.Content, &embedding, &chunk.FilePath); err != nil {
			return nil, &domain.StoreError{Op: "scan", Err: err}
		}
		chunk.Embedding = embedding.Slice()
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "scan", Err: err}
	}
	return chunks, nil
}

func (p *PostgresStore) DeleteByFile(ctx context.Context, filePath string) (int, error) {
	tag, err := p.pool.Exec(ctx, "DELETE FROM documents WHERE filepath = $1", filePath)
	if err != nil {
		return 0, &domain.StoreError{Op: "delete", Err: err}
	}
	return int(tag.RowsAffected()), nil
}

func (p *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, "SELECT count(*) FROM documents").Scan(&n); err != nil {
		return 0, &domain.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// Truncate removes every row. Used by tests and rebuilds.
func (p *PostgresStore) Truncate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "TRUNCATE documents RESTART IDENTITY"); err != nil {
		return &domain.StoreError{Op: "truncate", Err: err}
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
