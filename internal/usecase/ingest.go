package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// ProgressFunc is called after each file with the number of files done,
// the total and the path just finished.
type ProgressFunc func(done, total int, path string)

// IngestUseCase walks a document tree and stores embedded chunks for every
// file the store has not seen yet.
type IngestUseCase struct {
	store     port.DocumentStore
	walker    port.FileWalker
	extractor port.TextExtractor
	chunker   port.Chunker
	embedder  port.Embedder
	workers   int

	progress ProgressFunc
	onChange func()
}

// NewIngestUseCase creates a new ingest use case. workers bounds how many
// files are processed at once.
func NewIngestUseCase(
	store port.DocumentStore,
	walker port.FileWalker,
	extractor port.TextExtractor,
	chunker port.Chunker,
	embedder port.Embedder,
	workers int,
) *IngestUseCase {
	if workers <= 0 {
		workers = 1
	}
	return &IngestUseCase{
		store:     store,
		walker:    walker,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		workers:   workers,
	}
}

// OnProgress registers a progress callback. It may be called from
// several goroutines, but never concurrently.
func (u *IngestUseCase) OnProgress(fn ProgressFunc) {
	u.progress = fn
}

// OnStoreChange registers a hook run after an ingestion changed the store.
func (u *IngestUseCase) OnStoreChange(fn func()) {
	u.onChange = fn
}

type fileOutcome int

const (
	outcomeProcessed fileOutcome = iota
	outcomeSkipped
	outcomeFailed
)

type fileResult struct {
	outcome  fileOutcome
	inserted int
	err      error
}

// Ingest ingests every matching file under root. Per-file failures,
// including entries the walk could not read, are collected in the summary
// in walk order; the returned error is only set when root itself cannot
// be walked or ctx is cancelled.
func (u *IngestUseCase) Ingest(ctx context.Context, root string) (*domain.IngestSummary, error) {
	summary := &domain.IngestSummary{RunID: uuid.New()}
	log := slog.With("run_id", summary.RunID.String())

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	files, err := u.walker.Walk(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	log.Info("ingestion started", "root", absRoot, "files", len(files))

	results := make([]fileResult, len(files))
	started := make([]bool, len(files))

	var (
		mu   sync.Mutex
		done int
	)

	g := new(errgroup.Group)
	g.SetLimit(u.workers)
	for i, file := range files {
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		if file.Err != nil {
			log.Error("walk failed", "filepath", file.Path, "error", file.Err)
			results[i] = fileResult{outcome: outcomeFailed, err: file.Err}
			if u.progress != nil {
				mu.Lock()
				done++
				u.progress(done, len(files), file.Path)
				mu.Unlock()
			}
			continue
		}
		g.Go(func() error {
			category, year := DeriveCategoryYear(absRoot, file.Path)
			results[i] = u.ingestFile(ctx, log, file.Path, category, year, true)

			if u.progress != nil {
				mu.Lock()
				done++
				u.progress(done, len(files), file.Path)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, res := range results {
		if !started[i] {
			continue
		}
		summary.ChunksInserted += res.inserted
		switch res.outcome {
		case outcomeProcessed:
			summary.FilesProcessed++
		case outcomeSkipped:
			summary.FilesSkipped++
		case outcomeFailed:
			summary.Errors = append(summary.Errors, domain.FileError{FilePath: files[i].Path, Cause: res.err})
		}
	}

	if summary.ChunksInserted > 0 && u.onChange != nil {
		u.onChange()
	}

	log.Info("ingestion finished",
		"processed", summary.FilesProcessed,
		"skipped", summary.FilesSkipped,
		"chunks", summary.ChunksInserted,
		"errors", len(summary.Errors),
	)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// Reingest deletes the stored chunks of a single file and ingests it
// again. Unlike Ingest it replaces existing rows.
func (u *IngestUseCase) Reingest(ctx context.Context, root, path string) (*domain.IngestSummary, error) {
	summary := &domain.IngestSummary{RunID: uuid.New()}
	log := slog.With("run_id", summary.RunID.String())

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	deleted, err := u.store.DeleteByFile(ctx, absPath)
	if err != nil {
		return nil, err
	}
	log.Info("removed stored chunks", "filepath", absPath, "chunks", deleted)

	category, year := DeriveCategoryYear(absRoot, absPath)
	res := u.ingestFile(ctx, log, absPath, category, year, false)

	summary.ChunksInserted = res.inserted
	switch res.outcome {
	case outcomeProcessed:
		summary.FilesProcessed = 1
	case outcomeFailed:
		summary.Errors = append(summary.Errors, domain.FileError{FilePath: absPath, Cause: res.err})
	}

	if (deleted > 0 || res.inserted > 0) && u.onChange != nil {
		u.onChange()
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// ingestFile runs existence check, extraction, chunking, embedding and
// insertion for one file. Chunks inserted before a failure stay in the
// store and are reported in the result.
func (u *IngestUseCase) ingestFile(ctx context.Context, log *slog.Logger, path, category, year string, checkExists bool) fileResult {
	if checkExists {
		exists, err := u.store.Exists(ctx, path)
		if err != nil {
			log.Error("existence check failed", "filepath", path, "error", err)
			return fileResult{outcome: outcomeFailed, err: err}
		}
		if exists {
			log.Debug("skipping already ingested file", "filepath", path)
			return fileResult{outcome: outcomeSkipped}
		}
	}

	text, err := u.extractor.ExtractText(ctx, path)
	if err != nil {
		log.Error("extraction failed", "filepath", path, "error", err)
		return fileResult{outcome: outcomeFailed, err: err}
	}

	inserted := 0
	for content := range u.chunker.Chunk(text) {
		if err := ctx.Err(); err != nil {
			return fileResult{outcome: outcomeFailed, inserted: inserted, err: err}
		}

		if strings.TrimSpace(content) == "" {
			continue
		}

		vec, err := u.embedder.Embed(ctx, content)
		if err != nil {
			log.Error("embedding failed", "filepath", path, "chunk", inserted, "error", err)
			return fileResult{outcome: outcomeFailed, inserted: inserted, err: err}
		}
		if dim := u.embedder.Dimension(); dim > 0 && len(vec) != dim {
			err := &domain.EmbeddingError{
				Model: u.embedder.ModelName(),
				Err:   fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vec), dim),
			}
			log.Error("embedding failed", "filepath", path, "chunk", inserted, "error", err)
			return fileResult{outcome: outcomeFailed, inserted: inserted, err: err}
		}
		if err := ctx.Err(); err != nil {
			return fileResult{outcome: outcomeFailed, inserted: inserted, err: err}
		}

		err = u.store.Insert(ctx, domain.Chunk{
			Category:  category,
			Year:      year,
			Content:   content,
			Embedding: vec,
			FilePath:  path,
		})
		if err != nil {
			log.Error("insert failed", "filepath", path, "chunk", inserted, "error", err)
			return fileResult{outcome: outcomeFailed, inserted: inserted, err: err}
		}
		inserted++
	}

	log.Info("file ingested", "filepath", path, "category", category, "year", year, "chunks", inserted)
	return fileResult{outcome: outcomeProcessed, inserted: inserted}
}

// DeriveCategoryYear reads category and year from the first two directory
// levels between root and the file. Missing levels are domain.UnknownSegment.
func DeriveCategoryYear(root, path string) (category, year string) {
	category, year = domain.UnknownSegment, domain.UnknownSegment

	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return category, year
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) > 0 && parts[0] != "" {
		category = parts[0]
	}
	if len(parts) > 1 && parts[1] != "" {
		year = parts[1]
	}
	return category, year
}
