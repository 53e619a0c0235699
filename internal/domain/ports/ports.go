// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
)

// DocumentStore manages the remote document index.
type DocumentStore interface {
	// ListDocuments returns every indexed document in backend order.
	ListDocuments(ctx context.Context) ([]entities.DocumentRecord, error)

	// UploadDocument submits one file for indexing.
	UploadDocument(ctx context.Context, upload entities.PendingUpload) (*entities.UploadReceipt, error)

	// DeleteDocument removes a document and its chunks from the index.
	DeleteDocument(ctx context.Context, documentID string) error
}

// QueryService answers questions against the indexed documents.
type QueryService interface {
	Query(ctx context.Context, req entities.QueryRequest) (*entities.QueryResponse, error)
}

// StatusService exposes backend health and index statistics.
type StatusService interface {
	Health(ctx context.Context) (*entities.HealthStatus, error)
	Stats(ctx context.Context) (*entities.IndexStats, error)
}

// Backend is everything the session needs from the RAG service.
// Failures are returned as *entities.TransportError.
type Backend interface {
	DocumentStore
	QueryService
	StatusService
}

// DocumentLoader reads a local file into an upload selection.
type DocumentLoader interface {
	// Load reads the file at path.
	Load(ctx context.Context, path string) (*entities.PendingUpload, error)

	// SupportedExtensions returns the advisory list of accepted extensions.
	SupportedExtensions() []string
}

// TranscriptJournal durably records conversation transcripts.
type TranscriptJournal interface {
	// Record appends one message to the session's transcript.
	Record(ctx context.Context, sessionID string, msg entities.Message) error

	// Load returns a session's transcript in append order.
	Load(ctx context.Context, sessionID string) ([]entities.Message, error)

	// Sessions lists recorded session IDs, most recent first.
	Sessions(ctx context.Context) ([]string, error)

	Close() error
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	}
	return "unknown"
}
