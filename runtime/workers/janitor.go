package workers

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is the part of the file store the janitor needs.
type Sweeper interface {
	Sweep(now time.Time) int
}

// JanitorWorker periodically removes stored files that outlived the
// retention window. Per-file expiry timers cover the normal path; the
// sweep catches files whose timers were lost to a process restart.
type JanitorWorker struct {
	log      *slog.Logger
	store    Sweeper
	interval time.Duration
}

func NewJanitorWorker(log *slog.Logger, store Sweeper, interval time.Duration) *JanitorWorker {
	return &JanitorWorker{log: log, store: store, interval: interval}
}

func (w *JanitorWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Stopping upload janitor")
			return nil
		case <-ticker.C:
			if removed := w.store.Sweep(time.Now()); removed > 0 {
				w.log.Info("Swept expired uploads", "count", removed)
			}
		}
	}
}
