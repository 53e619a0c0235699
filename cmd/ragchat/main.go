// Command ragchat is a terminal chat client for a document question
// answering service. It can also expose the session over HTTP and upload
// files dropped into a watched folder.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xcro3dile/ragchat-go/internal/adapters/backend"
	"github.com/0xcro3dile/ragchat-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/ragchat-go/internal/adapters/journal"
	"github.com/0xcro3dile/ragchat-go/internal/adapters/loader"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
	"github.com/0xcro3dile/ragchat-go/internal/domain/usecases"
	"github.com/0xcro3dile/ragchat-go/internal/infrastructure/config"
	httpserver "github.com/0xcro3dile/ragchat-go/internal/infrastructure/http"
	"github.com/0xcro3dile/ragchat-go/internal/infrastructure/logging"
	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = flag.String("config", "", "Path to a YAML config file")
	backendURL = flag.String("backend", "", "RAG service URL (overrides config)")
	serveAddr  = flag.String("serve", "", "Expose the session over HTTP on this address")
	watchDir   = flag.String("watch", "", "Upload files dropped into this directory")
	resumeID   = flag.String("resume", "", "Resume a recorded session by ID, or \"last\"")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ragchat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig(*configPath, *backendURL, *serveAddr, *watchDir)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout, logging.Module(logger, "adapters", "backend"))

	tj, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	if tj != nil {
		defer tj.Close()
	}

	opts := []usecases.Option{
		usecases.WithLogger(logging.Module(logger, "usecases", "session")),
		usecases.WithLoader(loader.NewFileLoader(cfg.Upload.Extensions, cfg.Upload.MaxSizeMB<<20)),
		usecases.WithHistoryWindow(cfg.Chat.HistoryWindow),
	}
	if tj != nil {
		opts = append(opts, usecases.WithJournal(tj))
	}
	if *resumeID != "" {
		resume, err := resumeOption(ctx, tj, *resumeID)
		if err != nil {
			return err
		}
		opts = append(opts, resume)
	}

	session := usecases.NewSession(client, opts...)
	defer session.Close()

	out := newRenderer(color.Output, session)
	out.history(session.Messages())
	session.Subscribe(out.handle)

	headerStyle := color.New(color.FgGreen, color.Bold)
	headerStyle.Fprintln(color.Output, "RAG Chat")
	out.notice("Backend: %s  Session: %s", client.BaseURL(), session.ID())
	out.notice("Type /help for commands.")

	if h, err := session.Health(ctx); err != nil {
		out.warn("Backend unavailable: %s", detail(err))
	} else {
		out.health(h)
	}
	_ = session.RefreshDocuments(ctx)
	if session.Summary().TotalDocuments == 0 {
		out.notice("Upload some documents with /upload <path> to get started!")
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.Enabled {
		srv := httpserver.NewServer(session, cfg.Server.Addr, cfg.Server.AllowedOrigins, logging.Module(logger, "infrastructure", "http"))
		g.Go(func() error { return srv.Start(gctx) })
		out.notice("Serving session on http://%s", cfg.Server.Addr)
	}

	if cfg.Watch.Dir != "" {
		watcher, err := filewatcher.NewFSNotifyWatcher(cfg.Upload.Extensions, logging.Module(logger, "adapters", "filewatcher"))
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		auto := usecases.NewAutoUploader(session, watcher, logging.Module(logger, "usecases", "autoupload"))
		auto.SetTiming(cfg.Watch.Settle, 0)
		g.Go(func() error {
			defer watcher.Stop()
			if err := auto.Run(gctx, cfg.Watch.Dir); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watching %s: %w", cfg.Watch.Dir, err)
			}
			return nil
		})
		out.notice("Watching %s for new documents", cfg.Watch.Dir)
	}

	g.Go(func() error {
		// Leaving the prompt ends the whole process.
		defer stop()
		return newREPL(session, out, tj, os.Stdin).run(gctx)
	})

	return g.Wait()
}

// loadConfig layers command-line overrides on top of the file and
// environment before validating.
func loadConfig(path, backendURL, serveAddr, watchDir string) (*config.Config, error) {
	cfg, err := config.LoadUnvalidated(path)
	if err != nil {
		return nil, err
	}
	if backendURL != "" {
		cfg.Backend.URL = backendURL
	}
	if serveAddr != "" {
		cfg.Server.Enabled = true
		cfg.Server.Addr = serveAddr
	}
	if watchDir != "" {
		cfg.Watch.Dir = watchDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openJournal(cfg config.JournalConfig) (ports.TranscriptJournal, error) {
	switch cfg.Driver {
	case "sqlite":
		j, err := journal.NewSQLiteJournal(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		return j, nil
	case "memory":
		return journal.NewMemoryJournal(), nil
	}
	return nil, nil
}

func resumeOption(ctx context.Context, tj ports.TranscriptJournal, id string) (usecases.Option, error) {
	if tj == nil {
		return nil, errors.New("cannot resume: journal disabled")
	}
	if id == "last" {
		ids, err := tj.Sessions(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing sessions: %w", err)
		}
		if len(ids) == 0 {
			return nil, errors.New("cannot resume: no recorded sessions")
		}
		id = ids[0]
	}
	msgs, err := tj.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("cannot resume: session %s has no messages", id)
	}
	return usecases.WithResume(id, msgs), nil
}
