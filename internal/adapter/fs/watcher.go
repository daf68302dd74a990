package fs

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for the tree to settle.
const DefaultDebounce = 2 * time.Second

// Watcher reports changes to matching files under a root directory.
// fsnotify watches are not recursive, so every directory is added
// individually and new directories are picked up as they appear.
type Watcher struct {
	root     string
	walker   *Walker
	debounce time.Duration
	fsw      *fsnotify.Watcher
}

func NewWatcher(root string, walker *Walker, debounce time.Duration) (*Watcher, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{root: root, walker: walker, debounce: debounce, fsw: fsw}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run calls onChange once per burst of relevant events until ctx is done.
// onChange runs on the watcher goroutine, so events arriving meanwhile are
// folded into the next burst.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	defer w.fsw.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(event) {
				pending = true
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)

		case <-timer.C:
			if pending {
				pending = false
				onChange()
			}
		}
	}
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// handle reports whether the event concerns a file Walk would return.
func (w *Watcher) handle(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.walker.shouldExclude(rel + "/") {
				return false
			}
			if err := w.addTree(event.Name); err != nil {
				slog.Warn("failed to watch directory", "path", event.Name, "error", err)
			}
			// files copied in together with the directory produce no events
			return true
		}
	}

	if !w.walker.Matches(rel) {
		return false
	}
	slog.Debug("document changed", "path", event.Name, "op", event.Op.String())
	return true
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			rel, err := filepath.Rel(w.root, path)
			if err == nil && w.walker.shouldExclude(filepath.ToSlash(rel)+"/") {
				return filepath.SkipDir
			}
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
