// Package retention deletes conversation messages older than the retention window.
package retention

import (
	"context"
	"log/slog"
	"time"
)

// Deleter removes messages created before a cutoff.
type Deleter interface {
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Worker periodically sweeps expired messages.
type Worker struct {
	store     Deleter
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

const defaultInterval = time.Hour

// NewWorker creates a Worker that keeps messages for retention and sweeps every interval.
func NewWorker(store Deleter, retention, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Worker{
		store:     store,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// A zero retention disables the worker.
func (w *Worker) Run(ctx context.Context) error {
	if w.retention <= 0 {
		slog.Info("Retention worker disabled")
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	slog.Info("Retention worker started", "interval", w.interval, "retention", w.retention)

	w.Sweep(ctx)
	for {
		select {
		case <-ticker.C:
			w.Sweep(ctx)
		case <-ctx.Done():
			slog.Info("Retention worker shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// Sweep deletes every message older than the retention window.
func (w *Worker) Sweep(ctx context.Context) int64 {
	cutoff := w.now().Add(-w.retention)
	deleted, err := w.store.DeleteMessagesBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Retention sweep interrupted", "error", err)
			return 0
		}
		slog.Error("Retention sweep failed", "error", err, "cutoff", cutoff)
		return 0
	}
	if deleted > 0 {
		slog.Info("Retention sweep removed messages", "count", deleted, "cutoff", cutoff)
	}
	return deleted
}
