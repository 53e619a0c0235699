package usecases

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const journalTimeout = 5 * time.Second

// Session owns one user's conversation log, document inventory and request
// state. Commands block for the duration of their backend call and are safe
// to run from multiple goroutines; observers subscribe to state changes.
type Session struct {
	id        string
	backend   ports.Backend
	loader    ports.DocumentLoader
	journal   ports.TranscriptJournal
	log       *Log
	inventory *Inventory
	query     *QueryUseCase
	notify    *notifier
	logger    *zap.Logger

	mu     sync.RWMutex
	draft  string
	closed atomic.Bool
}

type sessionOptions struct {
	id      string
	resume  []entities.Message
	window  int
	now     func() time.Time
	logger  *zap.Logger
	loader  ports.DocumentLoader
	journal ports.TranscriptJournal
}

// Option configures a Session.
type Option func(*sessionOptions)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *sessionOptions) { o.logger = l }
}

// WithLoader enables SelectFile.
func WithLoader(l ports.DocumentLoader) Option {
	return func(o *sessionOptions) { o.loader = l }
}

// WithJournal records every appended message.
func WithJournal(j ports.TranscriptJournal) Option {
	return func(o *sessionOptions) { o.journal = j }
}

// WithHistoryWindow overrides how many conversational messages are sent with a query.
func WithHistoryWindow(n int) Option {
	return func(o *sessionOptions) { o.window = n }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *sessionOptions) { o.now = now }
}

// WithResume continues a recorded session: the log starts with msgs and
// keeps the recorded session ID.
func WithResume(sessionID string, msgs []entities.Message) Option {
	return func(o *sessionOptions) {
		o.id = sessionID
		o.resume = msgs
	}
}

// NewSession creates a session against backend.
func NewSession(backend ports.Backend, opts ...Option) *Session {
	o := sessionOptions{window: DefaultHistoryWindow, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}

	logger := o.logger.With(zap.String("session_id", o.id))
	n := newNotifier(logger)
	log := newLog(o.now, n)
	log.restore(o.resume)
	inv := newInventory(backend, log, n, logger.With(zap.String("component", "inventory")))
	q := newQueryUseCase(backend, log, inv, o.window, n, logger.With(zap.String("component", "query")))

	s := &Session{
		id:        o.id,
		backend:   backend,
		loader:    o.loader,
		journal:   o.journal,
		log:       log,
		inventory: inv,
		query:     q,
		notify:    n,
		logger:    logger,
	}
	q.accepted = s.clearDraft

	if s.journal != nil {
		n.subscribe(s.record)
	}

	logger.Info("session started", zap.Int("resumed_messages", log.Len()))
	return s
}

func (s *Session) record(ev Event) {
	if ev.Kind != EventMessageAppended || ev.Message == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := s.journal.Record(ctx, s.id, *ev.Message); err != nil {
		s.logger.Error("recording message failed", zap.String("message_id", ev.Message.ID), zap.Error(err))
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Subscribe registers h for session events and returns its cancel func.
func (s *Session) Subscribe(h Handler) func() {
	return s.notify.subscribe(h)
}

// Messages returns the transcript.
func (s *Session) Messages() []entities.Message { return s.log.Messages() }

// Documents returns the inventory in backend order.
func (s *Session) Documents() []entities.DocumentRecord { return s.inventory.Documents() }

// Summary totals the inventory.
func (s *Session) Summary() entities.InventorySummary { return s.inventory.Summary() }

// Pending returns the selected file, or nil.
func (s *Session) Pending() *entities.PendingUpload { return s.inventory.Pending() }

// State returns the in-flight flags.
func (s *Session) State() entities.RequestState {
	return entities.RequestState{
		Loading:   s.query.IsLoading(),
		Uploading: s.inventory.IsUploading(),
	}
}

// CanSubmit reports whether a question would currently be accepted,
// ignoring its text.
func (s *Session) CanSubmit() bool {
	return !s.closed.Load() && !s.query.IsLoading() && !s.inventory.IsEmpty()
}

// Draft returns the current input buffer.
func (s *Session) Draft() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft
}

// SetDraft replaces the input buffer.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

func (s *Session) clearDraft() { s.SetDraft("") }

// SubmitQuery asks a question. See QueryUseCase.Submit.
func (s *Session) SubmitQuery(ctx context.Context, question string) (*entities.Message, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	return s.query.Submit(ctx, question)
}

// SubmitDraft submits the current input buffer.
func (s *Session) SubmitDraft(ctx context.Context) (*entities.Message, error) {
	return s.SubmitQuery(ctx, s.Draft())
}

// Select makes upload the pending selection.
func (s *Session) Select(upload entities.PendingUpload) (*entities.PendingUpload, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	return s.inventory.Select(upload), nil
}

// SelectFile loads the file at path and makes it the pending selection.
func (s *Session) SelectFile(ctx context.Context, path string) (*entities.PendingUpload, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if s.loader == nil {
		return nil, ErrNoLoader
	}
	upload, err := s.loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("selecting %s: %w", path, err)
	}
	return s.inventory.Select(*upload), nil
}

// UploadSelected uploads the pending selection.
func (s *Session) UploadSelected(ctx context.Context) (*entities.UploadReceipt, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	return s.inventory.Upload(ctx)
}

// UploadFile loads the file at path and uploads it without touching the
// pending selection. It fails with ErrUploadInFlight while another upload
// runs.
func (s *Session) UploadFile(ctx context.Context, path string) (*entities.UploadReceipt, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if s.loader == nil {
		return nil, ErrNoLoader
	}
	upload, err := s.loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return s.inventory.UploadFile(ctx, *upload)
}

// DeleteDocument deletes a document from the index.
func (s *Session) DeleteDocument(ctx context.Context, documentID string) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.inventory.Delete(ctx, documentID)
}

// RefreshDocuments reloads the inventory. Transport failures end up in the
// log, not in the returned error.
func (s *Session) RefreshDocuments(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	_ = s.inventory.Refresh(ctx)
	return nil
}

// Health probes the backend. Probes are not session state and return their
// transport errors directly.
func (s *Session) Health(ctx context.Context) (*entities.HealthStatus, error) {
	return s.backend.Health(ctx)
}

// Stats fetches backend index statistics.
func (s *Session) Stats(ctx context.Context) (*entities.IndexStats, error) {
	return s.backend.Stats(ctx)
}

// Close tears the session down: subscribers are detached and further
// commands fail with ErrSessionClosed. The journal is owned by the caller.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.notify.reset()
	s.logger.Info("session closed", zap.Int("messages", s.log.Len()))
	return nil
}
