// Package filewatcher watches a drop folder for documents to upload.
package filewatcher

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// eventBuffer bounds how far the drop folder may run ahead of the uploader.
const eventBuffer = 100

// FSNotifyWatcher reports documents appearing in, changing in or leaving a
// drop folder. Files with other extensions (editor swap files, partial
// downloads) are ignored.
type FSNotifyWatcher struct {
	fs       *fsnotify.Watcher
	accepted map[string]struct{}
	logger   *zap.Logger
}

// NewFSNotifyWatcher creates a drop-folder watcher for the given upload
// extensions, matched case-insensitively. An empty list accepts .pdf, .docx
// and .txt.
func NewFSNotifyWatcher(extensions []string, logger *zap.Logger) (*FSNotifyWatcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(extensions) == 0 {
		extensions = []string{".pdf", ".docx", ".txt"}
	}

	accepted := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		accepted[strings.ToLower(ext)] = struct{}{}
	}
	return &FSNotifyWatcher{fs: fs, accepted: accepted, logger: logger}, nil
}

// Watch starts reporting upload candidates in dir. The channel closes when
// ctx is done or the watcher is stopped.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.fs.Add(dir); err != nil {
		return nil, err
	}

	out := make(chan ports.FileEvent, eventBuffer)
	go w.forward(ctx, dir, out)
	return out, nil
}

func (w *FSNotifyWatcher) forward(ctx context.Context, dir string, out chan<- ports.FileEvent) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-w.fs.Events:
			if !ok {
				return
			}
			ev, ok := w.candidate(raw)
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("drop folder watch error", zap.String("dir", dir), zap.Error(err))
		}
	}
}

// candidate turns a raw notification into an upload event. A rename is
// reported as removal: the new name arrives as its own create.
func (w *FSNotifyWatcher) candidate(raw fsnotify.Event) (ports.FileEvent, bool) {
	if !w.accepts(raw.Name) {
		return ports.FileEvent{}, false
	}
	ev := ports.FileEvent{Path: raw.Name}
	switch {
	case raw.Has(fsnotify.Create):
		ev.Operation = ports.FileCreated
	case raw.Has(fsnotify.Write):
		ev.Operation = ports.FileModified
	case raw.Has(fsnotify.Remove), raw.Has(fsnotify.Rename):
		ev.Operation = ports.FileDeleted
	default:
		return ports.FileEvent{}, false
	}
	return ev, true
}

// Stop releases the underlying notification handle.
func (w *FSNotifyWatcher) Stop() error {
	return w.fs.Close()
}

func (w *FSNotifyWatcher) accepts(path string) bool {
	_, ok := w.accepted[strings.ToLower(filepath.Ext(path))]
	return ok
}
