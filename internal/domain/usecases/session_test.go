package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	uploads map[string]entities.PendingUpload
}

func (f *fakeLoader) Load(ctx context.Context, path string) (*entities.PendingUpload, error) {
	u, ok := f.uploads[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return &u, nil
}

func (f *fakeLoader) SupportedExtensions() []string { return []string{".pdf", ".docx", ".txt"} }

type fakeJournal struct {
	mu       sync.Mutex
	recorded map[string][]entities.Message
	fail     bool
}

func (f *fakeJournal) Record(ctx context.Context, sessionID string, msg entities.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("disk full")
	}
	if f.recorded == nil {
		f.recorded = make(map[string][]entities.Message)
	}
	f.recorded[sessionID] = append(f.recorded[sessionID], msg)
	return nil
}

func (f *fakeJournal) Load(ctx context.Context, sessionID string) ([]entities.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recorded[sessionID], nil
}

func (f *fakeJournal) Sessions(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeJournal) Close() error                                   { return nil }

func TestSession_EndToEnd(t *testing.T) {
	backend := new(MockBackend)
	loader := &fakeLoader{uploads: map[string]entities.PendingUpload{
		"/tmp/doc1.pdf": {Path: "/tmp/doc1.pdf", Filename: "doc1.pdf", Data: []byte("pdf")},
	}}
	s := NewSession(backend, WithLoader(loader))

	// Empty inventory: submitting is disabled.
	_, err := s.SubmitQuery(context.Background(), "What is X?")
	assert.ErrorIs(t, err, ErrNoDocuments)
	assert.Empty(t, s.Messages())

	backend.On("UploadDocument", mock.Anything, mock.Anything).
		Return(&entities.UploadReceipt{DocumentID: "doc1", Filename: "doc1.pdf", ChunksProcessed: 3}, nil).Once()
	backend.On("ListDocuments", mock.Anything).
		Return([]entities.DocumentRecord{{ID: "doc1", Filename: "doc1.pdf", ChunksCount: 3}}, nil).Once()

	_, err = s.SelectFile(context.Background(), "/tmp/doc1.pdf")
	require.NoError(t, err)
	_, err = s.UploadSelected(context.Background())
	require.NoError(t, err)
	require.True(t, s.CanSubmit())

	backend.On("Query", mock.Anything, mock.Anything).Return(&entities.QueryResponse{
		Answer:     "X is Y",
		Sources:    []entities.Citation{{Source: "doc1", ChunkID: 2, Confidence: 0.9}},
		Confidence: 0.87,
	}, nil).Once()

	var states []entities.RequestState
	s.Subscribe(func(ev Event) {
		if ev.Kind == EventStateChanged {
			states = append(states, s.State())
		}
	})

	reply, err := s.SubmitQuery(context.Background(), "What is X?")
	require.NoError(t, err)

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, entities.MessageSystem, msgs[0].Type)
	assert.Equal(t, entities.MessageUser, msgs[1].Type)
	assert.Equal(t, "What is X?", msgs[1].Content)

	assistant := msgs[2]
	assert.Equal(t, entities.MessageAssistant, assistant.Type)
	assert.Equal(t, "X is Y", assistant.Content)
	assert.Equal(t, []entities.Citation{{Source: "doc1", ChunkID: 2, Confidence: 0.9}}, assistant.Sources)
	require.NotNil(t, assistant.Confidence)
	assert.Equal(t, 0.87, *assistant.Confidence)
	assert.Equal(t, assistant.ID, reply.ID)

	require.NotEmpty(t, states)
	assert.True(t, states[0].Loading, "pending while the query runs")
	assert.False(t, states[len(states)-1].Loading, "idle once it settles")
	assert.False(t, s.State().Loading)
}

func TestSession_JournalRecordsAppends(t *testing.T) {
	backend := new(MockBackend)
	journal := &fakeJournal{}
	s := newSeededSession(t, backend, WithJournal(journal))
	backend.On("Query", mock.Anything, mock.Anything).Return(&entities.QueryResponse{Answer: "a"}, nil).Once()

	_, err := s.SubmitQuery(context.Background(), "q")
	require.NoError(t, err)

	recorded, _ := journal.Load(context.Background(), s.ID())
	assert.Equal(t, s.Messages(), recorded)
}

func TestSession_JournalFailureIsNotFatal(t *testing.T) {
	backend := new(MockBackend)
	s := newSeededSession(t, backend, WithJournal(&fakeJournal{fail: true}))
	backend.On("Query", mock.Anything, mock.Anything).Return(&entities.QueryResponse{Answer: "a"}, nil).Once()

	_, err := s.SubmitQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, s.Messages(), 2)
}

func TestSession_Resume(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	prior := []entities.Message{
		{ID: "m1", Type: entities.MessageUser, Content: "old q", Timestamp: at},
		{ID: "m2", Type: entities.MessageAssistant, Content: "old a", Timestamp: at},
	}
	backend := new(MockBackend)
	journal := &fakeJournal{}
	s := newSeededSession(t, backend, WithResume("sess-1", prior), WithJournal(journal))
	backend.On("Query", mock.Anything, mock.MatchedBy(func(req entities.QueryRequest) bool {
		return len(req.ChatHistory) == 2 && req.ChatHistory[0].Content == "old q"
	})).Return(&entities.QueryResponse{Answer: "new a"}, nil).Once()

	assert.Equal(t, "sess-1", s.ID())
	assert.Equal(t, prior, s.Messages())

	_, err := s.SubmitQuery(context.Background(), "new q")
	require.NoError(t, err)

	recorded, _ := journal.Load(context.Background(), "sess-1")
	assert.Len(t, recorded, 2, "restored messages are not recorded again")
	backend.AssertExpectations(t)
}

func TestSession_SelectFile(t *testing.T) {
	s := NewSession(new(MockBackend))
	_, err := s.SelectFile(context.Background(), "/tmp/a.pdf")
	assert.ErrorIs(t, err, ErrNoLoader)

	s = NewSession(new(MockBackend), WithLoader(&fakeLoader{}))
	_, err = s.SelectFile(context.Background(), "/missing.pdf")
	assert.Error(t, err)
	assert.Nil(t, s.Pending())
	assert.Empty(t, s.Messages())
}

func TestSession_ClosedRejectsCommands(t *testing.T) {
	backend := new(MockBackend)
	s := newSeededSession(t, backend)
	calls := 0
	s.Subscribe(func(Event) { calls++ })

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.SubmitQuery(context.Background(), "q")
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.DeleteDocument(context.Background(), "doc-1"), ErrSessionClosed)
	assert.ErrorIs(t, s.RefreshDocuments(context.Background()), ErrSessionClosed)
	_, err = s.UploadSelected(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.False(t, s.CanSubmit())
	assert.Zero(t, calls)
}

func TestSession_HealthAndStatsPassThrough(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Health", mock.Anything).Return(&entities.HealthStatus{Status: "healthy"}, nil).Once()
	backend.On("Stats", mock.Anything).Return(nil, notFound("stats")).Once()
	s := NewSession(backend)

	h, err := s.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)

	_, err = s.Stats(context.Background())
	assert.EqualError(t, err, "not found")
	assert.Empty(t, s.Messages())
}

func TestSession_ConcurrentUploadAndQuery(t *testing.T) {
	backend := new(MockBackend)
	s := newSeededSession(t, backend)

	queryStarted := make(chan struct{})
	releaseQuery := make(chan struct{})
	backend.On("Query", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(queryStarted)
			<-releaseQuery
		}).
		Return(&entities.QueryResponse{Answer: "late"}, nil).Once()
	backend.On("UploadDocument", mock.Anything, mock.Anything).
		Return(&entities.UploadReceipt{Filename: "b.txt", ChunksProcessed: 1}, nil).Once()
	backend.On("ListDocuments", mock.Anything).Return([]entities.DocumentRecord{doc1}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.SubmitQuery(context.Background(), "q")
	}()
	<-queryStarted

	_, _ = s.Select(entities.PendingUpload{Filename: "b.txt"})
	_, err := s.UploadSelected(context.Background())
	require.NoError(t, err)

	close(releaseQuery)
	<-done

	var kinds []entities.MessageType
	for _, m := range s.Messages() {
		kinds = append(kinds, m.Type)
	}
	// Appends land in completion order.
	assert.Equal(t, []entities.MessageType{entities.MessageUser, entities.MessageSystem, entities.MessageAssistant}, kinds)
}
