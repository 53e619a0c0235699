// Package http provides the HTTP server infrastructure.
// Framework/driver layer: exposes one chat session as JSON plus an SSE
// event stream for browser or script front ends.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"slices"
	"time"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/usecases"
	"go.uber.org/zap"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 64 << 20
	eventBuffer   = 64
)

// Server is the HTTP surface of a chat session.
type Server struct {
	session        *usecases.Session
	addr           string
	allowedOrigins []string
	logger         *zap.Logger
}

// NewServer creates a new HTTP server. Cross-origin requests are only
// answered for allowedOrigins; an empty list means same-origin only.
func NewServer(session *usecases.Session, addr string, allowedOrigins []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		session:        session,
		addr:           addr,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("GET /api/messages", s.handleMessages)
	mux.HandleFunc("GET /api/documents", s.handleDocuments)
	mux.HandleFunc("POST /api/documents/refresh", s.handleRefresh)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDelete)
	mux.HandleFunc("POST /api/select", s.handleSelect)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	return s.corsMiddleware(s.loggingMiddleware(mux))
}

// Start runs the HTTP server until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		// No WriteTimeout: queries and the event stream are long-lived.
	}

	s.logger.Info("http server starting", zap.String("addr", s.addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type sessionView struct {
	ID        string                    `json:"id"`
	State     entities.RequestState     `json:"state"`
	CanSubmit bool                      `json:"can_submit"`
	Pending   *entities.PendingUpload   `json:"pending"`
	Summary   entities.InventorySummary `json:"summary"`
	Documents []entities.DocumentRecord `json:"documents"`
}

type documentsView struct {
	Documents []entities.DocumentRecord `json:"documents"`
	entities.InventorySummary
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionView{
		ID:        s.session.ID(),
		State:     s.session.State(),
		CanSubmit: s.session.CanSubmit(),
		Pending:   s.session.Pending(),
		Summary:   s.session.Summary(),
		Documents: s.session.Documents(),
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": s.session.Messages()})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	s.writeDocuments(w)
}

func (s *Server) writeDocuments(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, documentsView{
		Documents:        s.session.Documents(),
		InventorySummary: s.session.Summary(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.session.RefreshDocuments(r.Context()); err != nil {
		s.writeCommandError(w, err)
		return
	}
	s.writeDocuments(w)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeleteDocument(r.Context(), r.PathValue("id")); err != nil {
		s.writeCommandError(w, err)
		return
	}
	s.writeDocuments(w)
}

// handleSelect accepts either a JSON {"path": ...} naming a local file or a
// multipart form carrying the file itself in field "file".
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var (
		pending *entities.PendingUpload
		err     error
	)

	if isMultipart(r) {
		var upload entities.PendingUpload
		upload, err = readMultipartFile(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pending, err = s.session.Select(upload)
	} else {
		var req struct {
			Path string `json:"path"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Path == "" {
			writeError(w, http.StatusBadRequest, "path required")
			return
		}
		pending, err = s.session.SelectFile(r.Context(), req.Path)
	}

	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pending": pending})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.session.UploadSelected(r.Context())
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	// A nil receipt means the backend refused; the reason is in the transcript.
	writeJSON(w, http.StatusOK, map[string]interface{}{"receipt": receipt})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := s.session.SubmitQuery(r.Context(), req.Question)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": msg})
}

// handleEvents streams session events until the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := make(chan usecases.Event, eventBuffer)
	cancel := s.session.Subscribe(func(ev usecases.Event) {
		select {
		case events <- ev:
		default:
			s.logger.Warn("event stream lagging, dropping event", zap.String("kind", string(ev.Kind)))
		}
	})
	defer cancel()

	sendSSE(w, flusher, "ready", map[string]interface{}{
		"session_id": s.session.ID(),
		"state":      s.session.State(),
	})

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			sendSSE(w, flusher, string(ev.Kind), ev)
		case <-keepalive.C:
			_, _ = io.WriteString(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h, err := s.session.Health(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.session.Stats(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// writeCommandError maps a rejected command onto a status code.
func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, usecases.ErrQueryInFlight),
		errors.Is(err, usecases.ErrUploadInFlight),
		errors.Is(err, usecases.ErrNoDocuments),
		errors.Is(err, usecases.ErrNoFileSelected):
		status = http.StatusConflict
	case errors.Is(err, usecases.ErrSessionClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, usecases.ErrNoLoader):
		status = http.StatusNotImplemented
	}
	writeError(w, status, err.Error())
}

func (s *Server) writeBackendError(w http.ResponseWriter, err error) {
	var te *entities.TransportError
	if errors.As(err, &te) {
		writeError(w, http.StatusBadGateway, te.Detail)
		return
	}
	s.logger.Error("backend probe failed", zap.Error(err))
	writeError(w, http.StatusBadGateway, err.Error())
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func readMultipartFile(w http.ResponseWriter, r *http.Request) (entities.PendingUpload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	file, header, err := r.FormFile("file")
	if err != nil {
		return entities.PendingUpload{}, fmt.Errorf("reading file field: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return entities.PendingUpload{}, fmt.Errorf("reading file: %w", err)
	}
	return entities.PendingUpload{
		Filename:    filepath.Base(header.Filename),
		ContentType: header.Header.Get("Content-Type"),
		Size:        len(data),
		Data:        data,
	}, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
	flusher.Flush()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && slices.Contains(s.allowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		w.Header().Add("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
