package usecases

import (
	"context"
	"testing"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBackend implements ports.Backend for testing
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) ListDocuments(ctx context.Context) ([]entities.DocumentRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.DocumentRecord), args.Error(1)
}

func (m *MockBackend) UploadDocument(ctx context.Context, upload entities.PendingUpload) (*entities.UploadReceipt, error) {
	args := m.Called(ctx, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.UploadReceipt), args.Error(1)
}

func (m *MockBackend) DeleteDocument(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func (m *MockBackend) Query(ctx context.Context, req entities.QueryRequest) (*entities.QueryResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.QueryResponse), args.Error(1)
}

func (m *MockBackend) Health(ctx context.Context) (*entities.HealthStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.HealthStatus), args.Error(1)
}

func (m *MockBackend) Stats(ctx context.Context) (*entities.IndexStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.IndexStats), args.Error(1)
}

var doc1 = entities.DocumentRecord{ID: "doc-1", Filename: "guide.pdf", ChunksCount: 4, Status: "processed"}

// newSeededSession returns a session whose inventory already holds doc1.
func newSeededSession(t *testing.T, backend *MockBackend, opts ...Option) *Session {
	t.Helper()
	backend.On("ListDocuments", mock.Anything).Return([]entities.DocumentRecord{doc1}, nil).Once()

	s := NewSession(backend, opts...)
	require.NoError(t, s.RefreshDocuments(context.Background()))
	require.Len(t, s.Documents(), 1)
	return s
}

func notFound(op string) error {
	return entities.NewTransportError(op, 404, "not found", nil)
}
