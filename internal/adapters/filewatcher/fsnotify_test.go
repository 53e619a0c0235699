package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSNotifyWatcher_Creation(t *testing.T) {
	watcher, err := NewFSNotifyWatcher([]string{".txt", ".pdf"}, nil)
	require.NoError(t, err)
	defer watcher.Stop()
}

func TestFSNotifyWatcher_DefaultExtensions(t *testing.T) {
	watcher, err := NewFSNotifyWatcher(nil, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	for _, name := range []string{"a.pdf", "b.docx", "c.txt"} {
		assert.True(t, watcher.accepts(name), name)
	}
	assert.False(t, watcher.accepts("d.md"))
}

func TestFSNotifyWatcher_WatchDirectory(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFSNotifyWatcher([]string{".txt"}, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "test.txt"), []byte("hi"), 0o644)
	}()

	select {
	case event := <-events:
		assert.Equal(t, ports.FileCreated, event.Operation)
		assert.Equal(t, "test.txt", filepath.Base(event.Path))
	case <-ctx.Done():
		t.Error("timeout waiting for event")
	}
}

func TestFSNotifyWatcher_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFSNotifyWatcher([]string{".txt"}, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	require.NoError(t, err)

	_ = os.WriteFile(filepath.Join(dir, "test.json"), []byte("{}"), 0o644)

	select {
	case <-events:
		t.Error("should not receive event for .json")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFSNotifyWatcher_ExtensionCaseInsensitive(t *testing.T) {
	watcher, err := NewFSNotifyWatcher([]string{".PDF"}, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.True(t, watcher.accepts("/docs/Report.pdf"))
	assert.True(t, watcher.accepts("/docs/REPORT.PDF"))
	assert.False(t, watcher.accepts("/docs/report.pdf.tmp"))
}

func TestFSNotifyWatcher_Candidate(t *testing.T) {
	watcher, err := NewFSNotifyWatcher(nil, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	cases := []struct {
		op   fsnotify.Op
		want ports.FileOperation
	}{
		{fsnotify.Create, ports.FileCreated},
		{fsnotify.Write, ports.FileModified},
		{fsnotify.Remove, ports.FileDeleted},
		{fsnotify.Rename, ports.FileDeleted},
	}
	for _, tc := range cases {
		ev, ok := watcher.candidate(fsnotify.Event{Name: "/drop/a.pdf", Op: tc.op})
		require.True(t, ok, tc.op.String())
		assert.Equal(t, tc.want, ev.Operation, tc.op.String())
		assert.Equal(t, "/drop/a.pdf", ev.Path)
	}

	_, ok := watcher.candidate(fsnotify.Event{Name: "/drop/a.pdf", Op: fsnotify.Chmod})
	assert.False(t, ok)
	_, ok = watcher.candidate(fsnotify.Event{Name: "/drop/a.swp", Op: fsnotify.Create})
	assert.False(t, ok)
}

func TestFSNotifyWatcher_ClosesOnCancel(t *testing.T) {
	watcher, err := NewFSNotifyWatcher(nil, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	events, err := watcher.Watch(ctx, t.TempDir())
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Error("channel not closed after cancel")
	}
}

func TestFSNotifyWatcher_MissingDirectory(t *testing.T) {
	watcher, err := NewFSNotifyWatcher(nil, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	_, err = watcher.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestFSNotifyWatcher_Stop(t *testing.T) {
	watcher, err := NewFSNotifyWatcher(nil, nil)
	require.NoError(t, err)
	assert.NoError(t, watcher.Stop())
}
