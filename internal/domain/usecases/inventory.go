package usecases

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
	"go.uber.org/zap"
)

// Inventory is the client's view of the remote document index.
// It only changes when the backend confirms: uploads and deletes are followed
// by a full refresh instead of local edits.
type Inventory struct {
	store  ports.DocumentStore
	log    *Log
	notify *notifier
	logger *zap.Logger

	mu      sync.RWMutex
	docs    map[string]entities.DocumentRecord
	order   []string // backend order
	pending *entities.PendingUpload
	applied uint64 // sequence of the refresh that produced docs

	refreshSeq atomic.Uint64
	uploading  atomic.Bool
}

func newInventory(store ports.DocumentStore, log *Log, n *notifier, logger *zap.Logger) *Inventory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inventory{
		store:  store,
		log:    log,
		notify: n,
		logger: logger,
		docs:   make(map[string]entities.DocumentRecord),
	}
}

// Refresh replaces the inventory with the backend's current list.
// A failed fetch is reported in the log and leaves the inventory untouched.
// Overlapping refreshes apply in start order: a list fetched before one
// that has already been applied is discarded.
func (inv *Inventory) Refresh(ctx context.Context) error {
	seq := inv.refreshSeq.Add(1)
	records, err := inv.store.ListDocuments(ctx)
	if err != nil {
		inv.logger.Warn("listing documents failed", zap.Error(err))
		inv.log.Append(errorMessage("Failed to load documents: " + failureDetail(err)))
		return err
	}

	docs := make(map[string]entities.DocumentRecord, len(records))
	order := make([]string, 0, len(records))
	for _, r := range records {
		if _, seen := docs[r.ID]; !seen {
			order = append(order, r.ID)
		}
		docs[r.ID] = r
	}

	inv.mu.Lock()
	if seq < inv.applied {
		inv.mu.Unlock()
		inv.logger.Debug("discarding stale document list", zap.Uint64("seq", seq), zap.Uint64("applied", inv.applied))
		return nil
	}
	inv.applied = seq
	inv.docs = docs
	inv.order = order
	inv.mu.Unlock()

	inv.logger.Debug("inventory refreshed", zap.Int("documents", len(order)))
	inv.notify.publish(Event{Kind: EventDocumentsChanged})
	return nil
}

// Select makes upload the pending selection, replacing any previous one.
func (inv *Inventory) Select(upload entities.PendingUpload) *entities.PendingUpload {
	sel := upload
	inv.mu.Lock()
	inv.pending = &sel
	inv.mu.Unlock()

	inv.notify.publish(Event{Kind: EventSelectionChanged})
	cp := sel
	return &cp
}

// Pending returns a copy of the pending selection, or nil.
func (inv *Inventory) Pending() *entities.PendingUpload {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	if inv.pending == nil {
		return nil
	}
	cp := *inv.pending
	return &cp
}

// Upload submits the pending selection. Transport failures are reported in
// the log and keep the selection so the user can retry; the returned error
// is only ever a validation failure.
func (inv *Inventory) Upload(ctx context.Context) (*entities.UploadReceipt, error) {
	inv.mu.RLock()
	pending := inv.pending
	inv.mu.RUnlock()

	if pending == nil {
		return nil, ErrNoFileSelected
	}
	return inv.upload(ctx, *pending, func() {
		inv.mu.Lock()
		cleared := inv.pending == pending
		if cleared {
			inv.pending = nil
		}
		inv.mu.Unlock()
		if cleared {
			inv.notify.publish(Event{Kind: EventSelectionChanged})
		}
	})
}

// UploadFile submits upload directly, leaving the pending selection alone.
// It shares the single-upload guard with Upload.
func (inv *Inventory) UploadFile(ctx context.Context, upload entities.PendingUpload) (*entities.UploadReceipt, error) {
	return inv.upload(ctx, upload, nil)
}

// upload runs one guarded upload. onSuccess runs after the success message
// is logged and before the inventory is refreshed.
func (inv *Inventory) upload(ctx context.Context, upload entities.PendingUpload, onSuccess func()) (*entities.UploadReceipt, error) {
	if !inv.uploading.CompareAndSwap(false, true) {
		return nil, ErrUploadInFlight
	}
	inv.notify.publish(Event{Kind: EventStateChanged})
	defer func() {
		inv.uploading.Store(false)
		inv.notify.publish(Event{Kind: EventStateChanged})
	}()

	receipt, err := inv.store.UploadDocument(ctx, upload)
	if err != nil {
		inv.logger.Warn("upload failed", zap.String("filename", upload.Filename), zap.Error(err))
		inv.log.Append(errorMessage("Upload failed: " + failureDetail(err)))
		return nil, nil
	}

	filename := receipt.Filename
	if filename == "" {
		filename = upload.Filename
	}
	inv.log.Append(systemMessage(fmt.Sprintf("Successfully processed '%s' into %d chunks", filename, receipt.ChunksProcessed)))
	if onSuccess != nil {
		onSuccess()
	}

	inv.logger.Info("document uploaded",
		zap.String("filename", filename),
		zap.String("document_id", receipt.DocumentID),
		zap.Int("chunks", receipt.ChunksProcessed),
	)

	_ = inv.Refresh(ctx)
	return receipt, nil
}

// Delete removes a document once the backend confirms, then refreshes.
func (inv *Inventory) Delete(ctx context.Context, documentID string) error {
	if strings.TrimSpace(documentID) == "" {
		return ErrEmptyDocumentID
	}

	name := documentID
	if rec, ok := inv.Get(documentID); ok && rec.Filename != "" {
		name = rec.Filename
	}

	if err := inv.store.DeleteDocument(ctx, documentID); err != nil {
		inv.logger.Warn("delete failed", zap.String("document_id", documentID), zap.Error(err))
		inv.log.Append(errorMessage("Delete failed: " + failureDetail(err)))
		return nil
	}

	inv.log.Append(systemMessage(fmt.Sprintf("Document '%s' deleted successfully", name)))
	inv.logger.Info("document deleted", zap.String("document_id", documentID))

	_ = inv.Refresh(ctx)
	return nil
}

// Get looks a document up by ID.
func (inv *Inventory) Get(id string) (entities.DocumentRecord, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	rec, ok := inv.docs[id]
	return rec, ok
}

// Documents returns the inventory in backend order.
func (inv *Inventory) Documents() []entities.DocumentRecord {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	out := make([]entities.DocumentRecord, 0, len(inv.order))
	for _, id := range inv.order {
		out = append(out, inv.docs[id])
	}
	return out
}

// IsEmpty reports whether no documents are indexed.
func (inv *Inventory) IsEmpty() bool {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return len(inv.docs) == 0
}

// IsUploading reports whether an upload is in flight.
func (inv *Inventory) IsUploading() bool {
	return inv.uploading.Load()
}

// Summary totals documents and chunks.
func (inv *Inventory) Summary() entities.InventorySummary {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	s := entities.InventorySummary{TotalDocuments: len(inv.docs)}
	for _, d := range inv.docs {
		s.TotalChunks += d.ChunksCount
	}
	return s
}
