// Package worker mirrors record changes into Google Sheets.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mahjong/internal/amqp"
	"mahjong/internal/docstore"
	"mahjong/internal/records"
	"mahjong/internal/sheets"
	"mahjong/internal/storage"
)

// SyncTracker is implemented by stores that remember what reached the mirror.
// Marks apply only to the version they name.
type SyncTracker interface {
	GetPendingChanges(ctx context.Context, limit int) ([]storage.PendingChange, error)
	GetChange(ctx context.Context, id string) (storage.PendingChange, error)
	MarkSynced(ctx context.Context, id, version string) error
	MarkSyncError(ctx context.Context, id, version string) error
	MarkSkipped(ctx context.Context, id, version string) error
}

// SyncWorker applies record changes to the spreadsheet mirror.
type SyncWorker struct {
	reader    docstore.Reader
	tracker   SyncTracker
	exporter  sheets.RecordExporter
	batchSize int
}

// NewSyncWorker builds a worker. tracker may be nil for stores that do not
// keep sync state; ProcessPendingChanges is then a no-op.
func NewSyncWorker(reader docstore.Reader, tracker SyncTracker, exporter sheets.RecordExporter, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		reader:    reader,
		tracker:   tracker,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// HandleChange processes one record change message. The store is the source
// of truth: a put whose document is gone is mirrored as a removal.
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.RecordChangeMessage) error {
	slog.InfoContext(ctx, "Processing change message", "id", msg.ID, "op", msg.Op)

	if w.tracker != nil {
		change, err := w.tracker.GetChange(ctx, msg.ID)
		if errors.Is(err, docstore.ErrNotFound) {
			return w.mirrorRemove(ctx, msg.ID, "")
		}
		if err != nil {
			return fmt.Errorf("get record from storage: %w", err)
		}
		return w.mirror(ctx, change)
	}

	if msg.Op == amqp.OpRemove {
		return w.mirrorRemove(ctx, msg.ID, "")
	}
	doc, err := w.reader.Get(ctx, msg.ID)
	if errors.Is(err, docstore.ErrNotFound) {
		return w.mirrorRemove(ctx, msg.ID, "")
	}
	if err != nil {
		return fmt.Errorf("get record from storage: %w", err)
	}
	return w.mirrorPut(ctx, doc, "")
}

// ProcessPendingChanges mirrors anything the message path missed.
func (w *SyncWorker) ProcessPendingChanges(ctx context.Context) error {
	if w.tracker == nil {
		return nil
	}
	pending, err := w.tracker.GetPendingChanges(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending changes: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending changes", "count", len(pending))

	synced := 0
	for _, p := range pending {
		if err := w.mirror(ctx, p); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror pending change", "id", p.ID, "error", err)
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Pending changes processed", "synced", synced, "total", len(pending))
	return nil
}

// StartupSyncCheck drains the pending backlog once before messages flow.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	slog.InfoContext(ctx, "Starting startup sync check")
	if err := w.ProcessPendingChanges(ctx); err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	return nil
}

func (w *SyncWorker) mirror(ctx context.Context, c storage.PendingChange) error {
	if c.Deleted {
		return w.mirrorRemove(ctx, c.ID, c.Version)
	}
	return w.mirrorPut(ctx, docstore.Document{ID: c.ID, Fields: c.Fields}, c.Version)
}

func (w *SyncWorker) mirrorPut(ctx context.Context, doc docstore.Document, version string) error {
	r, err := records.FromDocument(doc)
	if err != nil {
		// Unreadable versions never reach the mirror and leave the sweep.
		slog.WarnContext(ctx, "Skipping unreadable record", "id", doc.ID, "error", err)
		w.mark(ctx, doc.ID, version, storage.SyncSkipped)
		return nil
	}
	if err := w.exporter.UpsertRecord(ctx, r); err != nil {
		w.mark(ctx, doc.ID, version, storage.SyncError)
		return fmt.Errorf("mirror record %s: %w", doc.ID, err)
	}
	w.mark(ctx, doc.ID, version, storage.SyncDone)
	return nil
}

func (w *SyncWorker) mirrorRemove(ctx context.Context, id, version string) error {
	if err := w.exporter.DeleteRecord(ctx, id); err != nil {
		w.mark(ctx, id, version, storage.SyncError)
		return fmt.Errorf("remove mirrored record %s: %w", id, err)
	}
	w.mark(ctx, id, version, storage.SyncDone)
	return nil
}

// mark records the outcome for id at version. Stores without sync state and
// versions unknown to the store are not marked.
func (w *SyncWorker) mark(ctx context.Context, id, version, status string) {
	if w.tracker == nil || version == "" {
		return
	}
	var err error
	switch status {
	case storage.SyncDone:
		err = w.tracker.MarkSynced(ctx, id, version)
	case storage.SyncSkipped:
		err = w.tracker.MarkSkipped(ctx, id, version)
	default:
		err = w.tracker.MarkSyncError(ctx, id, version)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to record sync status", "id", id, "status", status, "error", err)
	}
}
