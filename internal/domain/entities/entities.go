// Package entities contains core business entities.
// These are plain domain objects shared by the session, its adapters and its observers.
package entities

import "time"

// MessageType discriminates how a Message is rendered and whether it is
// eligible for the chat context sent back to the backend.
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageSystem    MessageType = "system"
	MessageError     MessageType = "error"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageUser, MessageAssistant, MessageSystem, MessageError:
		return true
	}
	return false
}

// Conversational reports whether messages of this type carry conversation
// content (user questions and assistant answers).
func (t MessageType) Conversational() bool {
	return t == MessageUser || t == MessageAssistant
}

// Message is one entry of the conversation transcript.
// ID and Timestamp are assigned by the log at append time.
type Message struct {
	ID         string      `json:"id"`
	Type       MessageType `json:"type"`
	Content    string      `json:"content"`
	Sources    []Citation  `json:"sources,omitempty"`
	Confidence *float64    `json:"confidence,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Clone returns a deep copy so readers can never alias log storage.
func (m Message) Clone() Message {
	out := m
	if m.Sources != nil {
		out.Sources = make([]Citation, len(m.Sources))
		copy(out.Sources, m.Sources)
	}
	if m.Confidence != nil {
		c := *m.Confidence
		out.Confidence = &c
	}
	return out
}

// Citation points an assistant answer back at a document chunk.
type Citation struct {
	Source     string  `json:"source"`
	ChunkID    int     `json:"chunk_id"` // zero-based
	Confidence float64 `json:"confidence"`
	Preview    string  `json:"preview,omitempty"`
}

// DocumentRecord is the client's view of one indexed document.
type DocumentRecord struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ChunksCount int    `json:"chunks_count"`
	Status      string `json:"status,omitempty"`
}

// PendingUpload is a selected file that has not been submitted yet.
type PendingUpload struct {
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	Data        []byte `json:"-"`
}

// UploadReceipt is the backend's confirmation of an accepted upload.
type UploadReceipt struct {
	DocumentID      string `json:"document_id"`
	Filename        string `json:"filename"`
	ChunksProcessed int    `json:"chunks_processed"`
	Status          string `json:"status"`
	Message         string `json:"message"`
}

// ChatTurn is one role-tagged entry of the history sent with a query.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryRequest is a question with its conversation context.
type QueryRequest struct {
	Question    string
	ChatHistory []ChatTurn
}

// QueryResponse is the backend's answer with citations.
type QueryResponse struct {
	Answer     string
	Sources    []Citation
	Confidence float64
}

// RequestState holds the two independent in-flight flags.
type RequestState struct {
	Loading   bool `json:"is_loading"`
	Uploading bool `json:"is_uploading"`
}

// HealthStatus mirrors the backend health probe.
type HealthStatus struct {
	Status                 string `json:"status"`
	DocumentsCount         int    `json:"documents_count"`
	VectorStoreInitialized bool   `json:"vector_store_initialized"`
	APIKeyConfigured       bool   `json:"openai_api_key_configured"`
	Message                string `json:"message"`
}

// IndexStats mirrors the backend statistics endpoint.
type IndexStats struct {
	TotalDocuments           int     `json:"total_documents"`
	TotalChunks              int     `json:"total_chunks"`
	AverageChunksPerDocument float64 `json:"average_chunks_per_document"`
	VectorStoreSize          int     `json:"vector_store_size"`
}

// InventorySummary is computed locally from the document inventory.
type InventorySummary struct {
	TotalDocuments int `json:"total_documents"`
	TotalChunks    int `json:"total_chunks"`
}
