package fs

import (
	"io/fs"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"docrag/internal/port"
)

var _ port.FileWalker = (*Walker)(nil)

// DefaultIncludes and DefaultExcludes are used when the configuration
// leaves the lists empty.
var (
	DefaultIncludes = []string{"**/*.docx"}
	DefaultExcludes = []string{"**/~$*", "**/.git/**"}
)

type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = DefaultIncludes
	}
	if excludes == nil {
		excludes = DefaultExcludes
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// Walk returns the matching regular files under root in lexical order.
// Patterns are matched against the slash-separated path relative to root.
// Entries below root that cannot be read are returned with Err set and
// the walk continues; only an unreadable root fails the walk.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	var files []port.FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.WalkDir(root, w.visit(root, &files))
	return files, err
}

func (w *Walker) visit(root string, files *[]port.FileInfo) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		relPath = filepath.ToSlash(relPath)

		if err != nil {
			if path == root {
				return err
			}
			*files = append(*files, port.FileInfo{Path: path, RelPath: relPath, Err: err})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if !w.shouldInclude(relPath) || w.shouldExclude(relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			*files = append(*files, port.FileInfo{Path: path, RelPath: relPath, Err: err})
			return nil
		}
		*files = append(*files, port.FileInfo{
			Path:    path,
			RelPath: relPath,
			ModTime: info.ModTime().Unix(),
			Size:    info.Size(),
		})

		return nil
	}
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// Matches reports whether a slash-separated path relative to the walk
// root would be returned by Walk.
func (w *Walker) Matches(relPath string) bool {
	return w.shouldInclude(relPath) && !w.shouldExclude(relPath)
}
