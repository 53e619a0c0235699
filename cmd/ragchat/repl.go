package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
	"github.com/0xcro3dile/ragchat-go/internal/domain/usecases"
)

const helpText = `Type a question and press Enter. Commands:
  /docs            list indexed documents
  /refresh         reload the document list
  /upload <path>   select a file and upload it
  /delete <id>     delete a document
  /stats           backend index statistics
  /health          backend health
  /sessions        recorded sessions
  /quit            exit`

// repl reads commands and questions from in. Backend calls run in the
// background so the prompt stays responsive; results arrive through the
// renderer's event subscription.
type repl struct {
	session *usecases.Session
	out     *renderer
	journal ports.TranscriptJournal
	in      io.Reader

	wg sync.WaitGroup
}

func newREPL(session *usecases.Session, out *renderer, journal ports.TranscriptJournal, in io.Reader) *repl {
	return &repl{session: session, out: out, journal: journal, in: in}
}

// run returns when ctx is done, input ends or the user quits. In-flight
// commands are waited for after end of input and canceled on /quit.
func (r *repl) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		r.wg.Wait()
		cancel()
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := r.dispatch(ctx, line); quit {
				cancel()
				return nil
			}
		}
	}
}

func (r *repl) dispatch(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.session.SetDraft(line)
		r.background(func() {
			if _, err := r.session.SubmitQuery(ctx, line); err != nil {
				r.out.warn("%s", rejection(err))
			}
		})
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		r.out.notice("%s", helpText)
	case "/docs":
		r.out.documents(r.session.Documents(), r.session.Summary())
	case "/refresh":
		r.background(func() { _ = r.session.RefreshDocuments(ctx) })
	case "/upload":
		if arg == "" {
			r.out.warn("usage: /upload <path>")
			return false
		}
		r.background(func() { r.upload(ctx, arg) })
	case "/delete":
		if arg == "" {
			r.out.warn("usage: /delete <id>")
			return false
		}
		r.background(func() {
			if err := r.session.DeleteDocument(ctx, arg); err != nil {
				r.out.warn("%s", rejection(err))
			}
		})
	case "/stats":
		r.background(func() {
			s, err := r.session.Stats(ctx)
			if err != nil {
				r.out.warn("Stats unavailable: %s", detail(err))
				return
			}
			r.out.stats(s)
		})
	case "/health":
		r.background(func() {
			h, err := r.session.Health(ctx)
			if err != nil {
				r.out.warn("Backend unhealthy: %s", detail(err))
				return
			}
			r.out.health(h)
		})
	case "/sessions":
		r.sessions(ctx)
	default:
		r.out.warn("unknown command %s, try /help", cmd)
	}
	return false
}

func (r *repl) upload(ctx context.Context, path string) {
	if _, err := r.session.SelectFile(ctx, path); err != nil {
		r.out.warn("%s", rejection(err))
		return
	}
	if _, err := r.session.UploadSelected(ctx); err != nil {
		r.out.warn("%s", rejection(err))
	}
}

func (r *repl) sessions(ctx context.Context) {
	if r.journal == nil {
		r.out.warn("transcripts are not being recorded")
		return
	}
	ids, err := r.journal.Sessions(ctx)
	if err != nil {
		r.out.warn("listing sessions: %v", err)
		return
	}
	for _, id := range ids {
		marker := " "
		if id == r.session.ID() {
			marker = "*"
		}
		r.out.notice("%s %s", marker, id)
	}
}

func (r *repl) background(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn()
	}()
}

// rejection phrases a validation failure for the prompt.
func rejection(err error) string {
	switch {
	case errors.Is(err, usecases.ErrNoDocuments):
		return "Upload some documents first (/upload <path>)."
	case errors.Is(err, usecases.ErrQueryInFlight):
		return "Still answering the previous question."
	case errors.Is(err, usecases.ErrUploadInFlight):
		return "Another upload is in progress."
	}
	return err.Error()
}

func detail(err error) string {
	var te *entities.TransportError
	if errors.As(err, &te) {
		return te.Detail
	}
	return fmt.Sprint(err)
}
