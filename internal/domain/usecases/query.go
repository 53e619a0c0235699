// Package usecases - query.go drives the lifecycle of a single question.
package usecases

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
	"go.uber.org/zap"
)

// QueryUseCase runs Idle -> Pending -> Idle for each accepted question.
// Only one query may be pending at a time.
type QueryUseCase struct {
	backend   ports.QueryService
	log       *Log
	inventory *Inventory
	window    int
	notify    *notifier
	logger    *zap.Logger

	// accepted runs after the user message is appended (clears the draft).
	accepted func()

	loading atomic.Bool
}

func newQueryUseCase(
	backend ports.QueryService,
	log *Log,
	inventory *Inventory,
	window int,
	n *notifier,
	logger *zap.Logger,
) *QueryUseCase {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryUseCase{
		backend:   backend,
		log:       log,
		inventory: inventory,
		window:    window,
		notify:    n,
		logger:    logger,
	}
}

// Submit asks question and appends exactly one user message and, once the
// backend settles, exactly one assistant or error message, which it returns.
// A non-nil error means the question was rejected and nothing was appended.
func (uc *QueryUseCase) Submit(ctx context.Context, question string) (*entities.Message, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if uc.inventory != nil && uc.inventory.IsEmpty() {
		return nil, ErrNoDocuments
	}
	if !uc.loading.CompareAndSwap(false, true) {
		return nil, ErrQueryInFlight
	}
	defer func() {
		uc.loading.Store(false)
		uc.notify.publish(Event{Kind: EventStateChanged})
	}()

	// History is taken before the question is appended; the question
	// travels separately.
	history := DeriveContext(uc.log.Messages(), uc.window)
	uc.log.Append(entities.Message{Type: entities.MessageUser, Content: question})
	if uc.accepted != nil {
		uc.accepted()
	}
	uc.notify.publish(Event{Kind: EventStateChanged})

	uc.logger.Debug("submitting query",
		zap.Int("question_len", len(question)),
		zap.Int("history", len(history)),
	)

	resp, err := uc.backend.Query(ctx, entities.QueryRequest{
		Question:    question,
		ChatHistory: history,
	})
	if err != nil {
		uc.logger.Warn("query failed", zap.Error(err))
		msg := uc.log.Append(errorMessage("Error: " + failureDetail(err)))
		return &msg, nil
	}

	confidence := resp.Confidence
	msg := uc.log.Append(entities.Message{
		Type:       entities.MessageAssistant,
		Content:    resp.Answer,
		Sources:    resp.Sources,
		Confidence: &confidence,
	})
	uc.logger.Info("query answered",
		zap.Int("sources", len(resp.Sources)),
		zap.Float64("confidence", confidence),
	)
	return &msg, nil
}

// IsLoading reports whether a query is pending.
func (uc *QueryUseCase) IsLoading() bool {
	return uc.loading.Load()
}
