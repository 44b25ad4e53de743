// Package worker mirrors the state document from the primary store into a
// secondary one, so a household running on SQLite still ends up with the
// shared spreadsheet copy (or the other way around).
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"roomie/internal/amqp"
	"roomie/internal/store"
)

type MirrorWorker struct {
	primary store.DocumentStore
	mirror  store.DocumentStore

	mu           sync.Mutex
	lastRevision int64
	lastMirrored time.Time
}

func NewMirrorWorker(primary, mirror store.DocumentStore) *MirrorWorker {
	return &MirrorWorker{primary: primary, mirror: mirror}
}

// HandleSavedMessage re-mirrors in response to a document-saved notification.
// Revisions older than one already mirrored are skipped; a full mirror is
// cheap, so this is only to avoid redundant writes on bursts.
func (w *MirrorWorker) HandleSavedMessage(ctx context.Context, msg *amqp.DocumentSavedMessage) error {
	w.mu.Lock()
	stale := msg.Revision != 0 && msg.Revision <= w.lastRevision
	w.mu.Unlock()
	if stale {
		slog.DebugContext(ctx, "Skipping already mirrored revision", "revision", msg.Revision)
		return nil
	}

	if err := w.MirrorOnce(ctx); err != nil {
		return err
	}

	w.mu.Lock()
	if msg.Revision > w.lastRevision {
		w.lastRevision = msg.Revision
	}
	w.mu.Unlock()
	return nil
}

// MirrorOnce copies the whole document from the primary store to the mirror.
func (w *MirrorWorker) MirrorOnce(ctx context.Context) error {
	doc, err := w.primary.Load(ctx)
	if err != nil {
		return fmt.Errorf("load from primary store: %w", err)
	}

	if err := w.mirror.Save(ctx, doc); err != nil {
		return fmt.Errorf("save to mirror store: %w", err)
	}

	w.mu.Lock()
	w.lastMirrored = time.Now()
	w.mu.Unlock()

	slog.InfoContext(ctx, "State document mirrored",
		"tasks", len(doc.Tasks),
		"bills", len(doc.Bills),
		"shopping", len(doc.Shopping),
		"furniture", len(doc.Furniture))
	return nil
}

// RunPeriodic re-mirrors on a timer as a backstop for lost notifications.
func (w *MirrorWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.MirrorOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic mirror failed", "error", err)
			}
		}
	}
}

// LastMirrored reports when the last successful mirror completed.
func (w *MirrorWorker) LastMirrored() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastMirrored
}
