package port

import "context"

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

// FileInfo describes one walked entry. Err is set when the entry could
// not be read; such entries carry no size or modification time, and for a
// directory nothing below it was visited.
type FileInfo struct {
	Path    string
	RelPath string
	ModTime int64
	Size    int64
	Err     error
}

// TextExtractor turns a source document into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
	Extensions() []string
}
