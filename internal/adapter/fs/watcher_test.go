package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_Handle(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "HR"), 0755))

	w, err := NewWatcher(root, NewWalker(nil, nil), 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	newDir := filepath.Join(root, "Finance")
	require.NoError(t, os.Mkdir(newDir, 0755))

	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want bool
	}{
		{"create docx", "HR/policy.docx", fsnotify.Create, true},
		{"write docx", "HR/policy.docx", fsnotify.Write, true},
		{"remove docx", "HR/policy.docx", fsnotify.Remove, true},
		{"rename docx", "HR/policy.docx", fsnotify.Rename, true},
		{"chmod ignored", "HR/policy.docx", fsnotify.Chmod, false},
		{"lock file ignored", "HR/~$policy.docx", fsnotify.Create, false},
		{"other extension ignored", "HR/notes.txt", fsnotify.Write, false},
		{"new directory", "Finance", fsnotify.Create, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := fsnotify.Event{Name: filepath.Join(root, filepath.FromSlash(tt.path)), Op: tt.op}
			assert.Equal(t, tt.want, w.handle(event))
		})
	}
}

func TestWatcher_RunDebounces(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "HR", "2022"), 0755))

	w, err := NewWatcher(root, NewWalker(nil, nil), 100*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func() { changes <- struct{}{} })
	}()

	for i := range 3 {
		path := filepath.Join(root, "HR", "2022", "policy.docx")
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0644))
	}

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	require.NoError(t, <-done)
	assert.LessOrEqual(t, len(changes), 1)
}
