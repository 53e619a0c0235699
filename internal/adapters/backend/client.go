// Package backend provides the HTTP adapter for the RAG service.
// Adapter implementing ports.Backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 120 * time.Second

	maxResponseBytes = 8 << 20
)

// Client implements ports.Backend over the service's JSON/HTTP API.
// It never retries; every failure is returned as *entities.TransportError.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a backend client. A zero timeout selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

type documentDTO struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ChunksCount int    `json:"chunks_count"`
	Status      string `json:"status,omitempty"`
}

type listDocumentsResponse struct {
	Documents  []documentDTO `json:"documents"`
	TotalCount int           `json:"total_count"`
}

type uploadResponse struct {
	DocumentID      string `json:"document_id"`
	Filename        string `json:"filename"`
	ChunksProcessed int    `json:"chunks_processed"`
	Status          string `json:"status"`
	Message         string `json:"message"`
}

type chatTurnDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type queryRequest struct {
	Question    string        `json:"question"`
	ChatHistory []chatTurnDTO `json:"chat_history"`
}

type citationDTO struct {
	Source     string  `json:"source"`
	ChunkID    int     `json:"chunk_id"`
	Confidence float64 `json:"confidence"`
	Preview    string  `json:"preview,omitempty"`
}

type queryResponse struct {
	Answer     string        `json:"answer"`
	Sources    []citationDTO `json:"sources"`
	Confidence float64       `json:"confidence"`
}

// ListDocuments fetches the full inventory.
func (c *Client) ListDocuments(ctx context.Context) ([]entities.DocumentRecord, error) {
	var resp listDocumentsResponse
	if err := c.do(ctx, "list documents", http.MethodGet, "/documents", nil, "", &resp); err != nil {
		return nil, err
	}

	docs := make([]entities.DocumentRecord, len(resp.Documents))
	for i, d := range resp.Documents {
		docs[i] = entities.DocumentRecord{
			ID:          d.ID,
			Filename:    d.Filename,
			ChunksCount: d.ChunksCount,
			Status:      d.Status,
		}
	}
	return docs, nil
}

// UploadDocument posts the file as multipart field "file".
func (c *Client) UploadDocument(ctx context.Context, upload entities.PendingUpload) (*entities.UploadReceipt, error) {
	body, contentType, err := encodeUpload(upload)
	if err != nil {
		return nil, entities.NewTransportError("upload document", 0, fmt.Sprintf("encoding upload: %v", err), err)
	}

	var resp uploadResponse
	if err := c.do(ctx, "upload document", http.MethodPost, "/upload-document", body, contentType, &resp); err != nil {
		return nil, err
	}

	return &entities.UploadReceipt{
		DocumentID:      resp.DocumentID,
		Filename:        resp.Filename,
		ChunksProcessed: resp.ChunksProcessed,
		Status:          resp.Status,
		Message:         resp.Message,
	}, nil
}

// DeleteDocument removes one document. The success body is ignored.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	return c.do(ctx, "delete document", http.MethodDelete, "/documents/"+url.PathEscape(documentID), nil, "", nil)
}

// Query asks a question with its chat history.
func (c *Client) Query(ctx context.Context, req entities.QueryRequest) (*entities.QueryResponse, error) {
	payload := queryRequest{
		Question:    req.Question,
		ChatHistory: make([]chatTurnDTO, len(req.ChatHistory)),
	}
	for i, t := range req.ChatHistory {
		payload.ChatHistory[i] = chatTurnDTO{Role: t.Role, Content: t.Content}
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, entities.NewTransportError("query", 0, fmt.Sprintf("marshaling request: %v", err), err)
	}

	var resp queryResponse
	if err := c.do(ctx, "query", http.MethodPost, "/query", bytes.NewReader(jsonData), "application/json", &resp); err != nil {
		return nil, err
	}

	out := &entities.QueryResponse{
		Answer:     resp.Answer,
		Confidence: resp.Confidence,
		Sources:    make([]entities.Citation, len(resp.Sources)),
	}
	for i, s := range resp.Sources {
		out.Sources[i] = entities.Citation{
			Source:     s.Source,
			ChunkID:    s.ChunkID,
			Confidence: s.Confidence,
			Preview:    s.Preview,
		}
	}
	return out, nil
}

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) (*entities.HealthStatus, error) {
	var resp entities.HealthStatus
	if err := c.do(ctx, "health", http.MethodGet, "/health", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats fetches GET /stats.
func (c *Client) Stats(ctx context.Context) (*entities.IndexStats, error) {
	var resp entities.IndexStats
	if err := c.do(ctx, "stats", http.MethodGet, "/stats", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do issues one request and normalizes every failure into a TransportError.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return entities.NewTransportError(op, 0, fmt.Sprintf("creating request: %v", err), err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("backend unreachable", zap.String("op", op), zap.Error(err))
		return entities.NewTransportError(op, 0, "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return entities.NewTransportError(op, resp.StatusCode, "", fmt.Errorf("reading response: %w", err))
	}

	c.logger.Debug("backend call",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return entities.NewTransportError(op, resp.StatusCode, parseDetail(data), nil)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return entities.NewTransportError(op, resp.StatusCode, "invalid response from backend", fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// parseDetail pulls a human-readable message out of an error body.
// FastAPI sends {"detail": "..."} or, for validation errors, a list of
// {"msg": "..."} objects.
func parseDetail(body []byte) string {
	var e struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err != nil || len(e.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(e.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(e.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	if string(e.Detail) == "null" {
		return ""
	}
	return string(e.Detail)
}

func encodeUpload(upload entities.PendingUpload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	contentType := upload.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(upload.Data).String()
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": upload.Filename,
	}))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
