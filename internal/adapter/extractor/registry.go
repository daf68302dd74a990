package extractor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/port"
)

var errInvalidUTF8 = errors.New("file is not valid UTF-8")

// Registry dispatches to an extractor by file extension.
type Registry struct {
	byExt map[string]port.TextExtractor
}

// NewRegistry registers the given extractors. A later extractor wins
// when two claim the same extension.
func NewRegistry(extractors ...port.TextExtractor) *Registry {
	r := &Registry{byExt: make(map[string]port.TextExtractor)}
	for _, e := range extractors {
		for _, ext := range e.Extensions() {
			r.byExt[strings.ToLower(ext)] = e
		}
	}
	return r
}

// Default returns a registry for .docx, .txt and .md files.
func Default() *Registry {
	return NewRegistry(NewDocx(), NewPlainText())
}

func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (r *Registry) ExtractText(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.byExt[ext]
	if !ok {
		return "", &domain.ExtractionError{Path: path, Err: fmt.Errorf("unsupported file type %q", ext)}
	}
	return e.ExtractText(ctx, path)
}
