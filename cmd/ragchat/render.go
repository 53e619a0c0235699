package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/usecases"
	"github.com/fatih/color"
)

var (
	userStyle      = color.New(color.FgGreen, color.Bold)
	assistantStyle = color.New(color.FgCyan, color.Bold)
	systemStyle    = color.New(color.FgGreen)
	errorStyle     = color.New(color.FgRed)
	dimStyle       = color.New(color.Faint)
	headerStyle    = color.New(color.Bold)
)

// sessionView is the read side of the session the renderer needs.
type sessionView interface {
	State() entities.RequestState
	Summary() entities.InventorySummary
	Pending() *entities.PendingUpload
}

// renderer prints session events to the terminal. It only reads session
// state and never issues commands.
type renderer struct {
	mu      sync.Mutex
	out     io.Writer
	session sessionView
	last    entities.RequestState
}

func newRenderer(out io.Writer, session sessionView) *renderer {
	return &renderer{out: out, session: session}
}

func (r *renderer) handle(ev usecases.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case usecases.EventMessageAppended:
		if ev.Message != nil {
			r.printMessage(*ev.Message)
		}
	case usecases.EventStateChanged:
		st := r.session.State()
		if st.Loading && !r.last.Loading {
			dimStyle.Fprintln(r.out, "Thinking...")
		}
		if st.Uploading && !r.last.Uploading {
			dimStyle.Fprintln(r.out, "Processing document...")
		}
		r.last = st
	case usecases.EventDocumentsChanged:
		s := r.session.Summary()
		dimStyle.Fprintf(r.out, "Documents: %d, chunks: %d\n", s.TotalDocuments, s.TotalChunks)
	case usecases.EventSelectionChanged:
		if p := r.session.Pending(); p != nil {
			dimStyle.Fprintf(r.out, "Selected %s (%d bytes)\n", p.Filename, p.Size)
		}
	}
}

// history prints a transcript, used when resuming.
func (r *renderer) history(msgs []entities.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.printMessage(m)
	}
}

func (r *renderer) printMessage(m entities.Message) {
	ts := m.Timestamp.Format("15:04:05")
	switch m.Type {
	case entities.MessageUser:
		fmt.Fprintf(r.out, "%s %s %s\n", userStyle.Sprint("You:"), m.Content, dimStyle.Sprint(ts))
	case entities.MessageAssistant:
		fmt.Fprintf(r.out, "%s %s\n", assistantStyle.Sprint("Assistant:"), m.Content)
		if len(m.Sources) > 0 {
			headerStyle.Fprintf(r.out, "  Sources (%d)\n", len(m.Sources))
			for i, s := range m.Sources {
				fmt.Fprintf(r.out, "  [%d] %s, chunk %d, %.1f%%\n", i+1, s.Source, s.ChunkID+1, s.Confidence*100)
				if s.Preview != "" {
					dimStyle.Fprintf(r.out, "      %s\n", s.Preview)
				}
			}
		}
		if m.Confidence != nil && *m.Confidence > 0 {
			dimStyle.Fprintf(r.out, "  Overall confidence: %.1f%% %s\n", *m.Confidence*100, ts)
		}
	case entities.MessageSystem:
		systemStyle.Fprintln(r.out, m.Content)
	case entities.MessageError:
		errorStyle.Fprintln(r.out, m.Content)
	}
}

func (r *renderer) documents(docs []entities.DocumentRecord, summary entities.InventorySummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(docs) == 0 {
		fmt.Fprintln(r.out, "No documents uploaded yet. Use /upload <path> to get started.")
		return
	}
	headerStyle.Fprintf(r.out, "Uploaded documents (%d)\n", summary.TotalDocuments)
	for _, d := range docs {
		fmt.Fprintf(r.out, "  %s  %s  %d chunks\n", dimStyle.Sprint(d.ID), d.Filename, d.ChunksCount)
	}
	dimStyle.Fprintf(r.out, "Total chunks: %d\n", summary.TotalChunks)
}

func (r *renderer) health(h *entities.HealthStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	style := systemStyle
	if h.Status != "healthy" {
		style = errorStyle
	}
	style.Fprintf(r.out, "Backend %s: %s\n", h.Status, h.Message)
	fmt.Fprintf(r.out, "  documents: %d, vector store ready: %t, API key configured: %t\n",
		h.DocumentsCount, h.VectorStoreInitialized, h.APIKeyConfigured)
}

func (r *renderer) stats(s *entities.IndexStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	headerStyle.Fprintln(r.out, "Statistics")
	fmt.Fprintf(r.out, "  Total documents: %d\n  Total chunks: %d\n  Average chunks per document: %.1f\n  Vector store size: %d\n",
		s.TotalDocuments, s.TotalChunks, s.AverageChunksPerDocument, s.VectorStoreSize)
}

func (r *renderer) notice(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dimStyle.Fprintf(r.out, format+"\n", args...)
}

func (r *renderer) warn(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	errorStyle.Fprintf(r.out, format+"\n", args...)
}
