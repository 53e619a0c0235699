package usecases

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
	"go.uber.org/zap"
)

const minSettleTick = time.Millisecond

// AutoUploader uploads files dropped into a watched folder.
// Events for a path are coalesced until it has been quiet for the settle
// delay, so a file being written is uploaded once. Uploads go straight to
// the backend and never replace the user's pending selection.
type AutoUploader struct {
	session    *Session
	watcher    ports.FileWatcher
	logger     *zap.Logger
	settle     time.Duration
	retryDelay time.Duration
	maxRetries int
}

// NewAutoUploader creates an uploader feeding session from watcher.
func NewAutoUploader(session *Session, watcher ports.FileWatcher, logger *zap.Logger) *AutoUploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoUploader{
		session:    session,
		watcher:    watcher,
		logger:     logger,
		settle:     500 * time.Millisecond,
		retryDelay: time.Second,
		maxRetries: 30,
	}
}

// SetTiming adjusts the settle delay and the back-off used while another
// upload is in flight.
func (a *AutoUploader) SetTiming(settle, retryDelay time.Duration) {
	if settle > 0 {
		a.settle = settle
	}
	if retryDelay > 0 {
		a.retryDelay = retryDelay
	}
}

// Run watches dir until ctx is done or the watcher stops. Settled paths are
// handed to a single worker so the event loop keeps draining the watcher
// while an upload waits for its turn.
func (a *AutoUploader) Run(ctx context.Context, dir string) error {
	events, err := a.watcher.Watch(ctx, dir)
	if err != nil {
		return err
	}
	a.logger.Info("watching for documents", zap.String("dir", dir))

	ctx, cancel := context.WithCancel(ctx)
	jobs := make(chan string)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for path := range jobs {
			a.upload(ctx, path)
		}
	}()
	defer func() {
		cancel()
		close(jobs)
		<-done
	}()

	ticker := time.NewTicker(max(a.settle/2, minSettleTick))
	defer ticker.Stop()

	dirty := make(map[string]time.Time)
	var queue []string
	for {
		var (
			send chan<- string
			next string
		)
		if len(queue) > 0 {
			send, next = jobs, queue[0]
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Operation == ports.FileDeleted {
				delete(dirty, ev.Path)
				queue = slices.DeleteFunc(queue, func(p string) bool { return p == ev.Path })
				continue
			}
			dirty[ev.Path] = time.Now()
		case send <- next:
			queue = queue[1:]
		case now := <-ticker.C:
			for path, seen := range dirty {
				if now.Sub(seen) < a.settle {
					continue
				}
				delete(dirty, path)
				if !slices.Contains(queue, path) {
					queue = append(queue, path)
				}
			}
		}
	}
}

func (a *AutoUploader) upload(ctx context.Context, path string) {
	for attempt := 0; ; attempt++ {
		_, err := a.session.UploadFile(ctx, path)
		if errors.Is(err, ErrUploadInFlight) && attempt < a.maxRetries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(a.retryDelay):
			}
			continue
		}
		if err != nil {
			a.logger.Warn("skipping file", zap.String("path", path), zap.Error(err))
		}
		return
	}
}
