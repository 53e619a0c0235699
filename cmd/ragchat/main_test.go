package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/0xcro3dile/ragchat-go/internal/adapters/journal"
	"github.com/0xcro3dile/ragchat-go/internal/adapters/loader"
	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/usecases"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

type stubBackend struct {
	mu   sync.Mutex
	docs []entities.DocumentRecord
}

func (b *stubBackend) ListDocuments(ctx context.Context) ([]entities.DocumentRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]entities.DocumentRecord(nil), b.docs...), nil
}

func (b *stubBackend) UploadDocument(ctx context.Context, u entities.PendingUpload) (*entities.UploadReceipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = append(b.docs, entities.DocumentRecord{ID: "d-" + u.Filename, Filename: u.Filename, ChunksCount: 2})
	return &entities.UploadReceipt{DocumentID: "d-" + u.Filename, Filename: u.Filename, ChunksProcessed: 2}, nil
}

func (b *stubBackend) DeleteDocument(ctx context.Context, id string) error {
	return entities.NewTransportError("delete document", 404, "not found", nil)
}

func (b *stubBackend) Query(ctx context.Context, req entities.QueryRequest) (*entities.QueryResponse, error) {
	return &entities.QueryResponse{
		Answer:     "X is Y",
		Sources:    []entities.Citation{{Source: "a.txt", ChunkID: 0, Confidence: 0.9, Preview: "X is..."}},
		Confidence: 0.87,
	}, nil
}

func (b *stubBackend) Health(ctx context.Context) (*entities.HealthStatus, error) {
	return &entities.HealthStatus{Status: "healthy", Message: "All systems operational"}, nil
}

func (b *stubBackend) Stats(ctx context.Context) (*entities.IndexStats, error) {
	return &entities.IndexStats{TotalDocuments: 1, TotalChunks: 2, AverageChunksPerDocument: 2, VectorStoreSize: 2}, nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestRenderer_Messages(t *testing.T) {
	var out syncBuffer
	session := usecases.NewSession(&stubBackend{})
	defer session.Close()
	r := newRenderer(&out, session)

	confidence := 0.87
	r.history([]entities.Message{
		{Type: entities.MessageUser, Content: "What is X?", Timestamp: time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)},
		{
			Type:       entities.MessageAssistant,
			Content:    "X is Y",
			Sources:    []entities.Citation{{Source: "a.pdf", ChunkID: 2, Confidence: 0.9, Preview: "X..."}},
			Confidence: &confidence,
		},
		{Type: entities.MessageSystem, Content: "Successfully processed 'a.pdf' into 3 chunks"},
		{Type: entities.MessageError, Content: "Error: not found"},
	})

	text := out.String()
	assert.Contains(t, text, "You: What is X? 09:30:00")
	assert.Contains(t, text, "Assistant: X is Y")
	assert.Contains(t, text, "Sources (1)")
	assert.Contains(t, text, "[1] a.pdf, chunk 3, 90.0%")
	assert.Contains(t, text, "Overall confidence: 87.0%")
	assert.Contains(t, text, "Successfully processed 'a.pdf' into 3 chunks")
	assert.Contains(t, text, "Error: not found")
}

func TestREPL_QuestionAndCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("X is Y"), 0o644))

	tj := journal.NewMemoryJournal()
	session := usecases.NewSession(&stubBackend{},
		usecases.WithLoader(loader.NewFileLoader(nil, 0)),
		usecases.WithJournal(tj),
	)
	defer session.Close()

	var out syncBuffer
	r := newRenderer(&out, session)
	session.Subscribe(r.handle)

	ctx := context.Background()
	cli := newREPL(session, r, tj, strings.NewReader(""))

	cli.dispatch(ctx, "What is X?")
	cli.wg.Wait()
	assert.Contains(t, out.String(), "Upload some documents first")

	cli.dispatch(ctx, "/upload "+path)
	cli.wg.Wait()
	assert.Contains(t, out.String(), "Successfully processed 'a.txt' into 2 chunks")

	cli.dispatch(ctx, "What is X?")
	cli.wg.Wait()
	assert.Contains(t, out.String(), "Assistant: X is Y")

	cli.dispatch(ctx, "/delete ghost")
	cli.wg.Wait()
	assert.Contains(t, out.String(), "Delete failed: not found")

	cli.dispatch(ctx, "/docs")
	assert.Contains(t, out.String(), "Uploaded documents (1)")

	cli.dispatch(ctx, "/stats")
	cli.wg.Wait()
	assert.Contains(t, out.String(), "Average chunks per document: 2.0")

	cli.dispatch(ctx, "/sessions")
	assert.Contains(t, out.String(), "* "+session.ID())

	cli.dispatch(ctx, "/bogus")
	assert.Contains(t, out.String(), "unknown command /bogus")

	assert.True(t, cli.dispatch(ctx, "/quit"))

	recorded, err := tj.Load(ctx, session.ID())
	require.NoError(t, err)
	assert.Len(t, recorded, len(session.Messages()))
}

func TestREPL_RunEndsOnQuit(t *testing.T) {
	session := usecases.NewSession(&stubBackend{})
	defer session.Close()
	var out syncBuffer

	cli := newREPL(session, newRenderer(&out, session), nil, strings.NewReader("/help\n/quit\n/docs\n"))

	done := make(chan error, 1)
	go func() { done <- cli.run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("repl did not stop")
	}
	assert.Contains(t, out.String(), "/upload <path>")
	assert.NotContains(t, out.String(), "No documents uploaded yet")
}

func TestResumeOption(t *testing.T) {
	ctx := context.Background()
	tj := journal.NewMemoryJournal()

	_, err := resumeOption(ctx, nil, "last")
	assert.Error(t, err)

	_, err = resumeOption(ctx, tj, "last")
	assert.Error(t, err)

	require.NoError(t, tj.Record(ctx, "s-old", entities.Message{ID: "m1", Type: entities.MessageUser, Content: "hello"}))
	opt, err := resumeOption(ctx, tj, "last")
	require.NoError(t, err)

	session := usecases.NewSession(&stubBackend{}, opt)
	defer session.Close()
	assert.Equal(t, "s-old", session.ID())
	require.Len(t, session.Messages(), 1)
	assert.Equal(t, "hello", session.Messages()[0].Content)
}

func TestLoadConfig_FlagsOverrideBeforeValidation(t *testing.T) {
	t.Setenv("RAGCHAT_BACKEND_URL", "not a url")

	_, err := loadConfig("", "", "", "")
	require.Error(t, err)

	cfg, err := loadConfig("", "http://rag.test:8000", "localhost:9999", "./inbox")
	require.NoError(t, err)
	assert.Equal(t, "http://rag.test:8000", cfg.Backend.URL)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, "localhost:9999", cfg.Server.Addr)
	assert.Equal(t, "./inbox", cfg.Watch.Dir)
}
