// Package worker runs the background loop that keeps the snapshot in step
// with the backend while the app idles.
package worker

import (
	"context"
	"log/slog"
	"time"

	"borsa/internal/state"
)

// Refresher reloads the snapshot on a fixed interval. A zero interval
// disables it.
type Refresher struct {
	store    *state.Store
	interval time.Duration
}

func NewRefresher(store *state.Store, interval time.Duration) *Refresher {
	return &Refresher{store: store, interval: interval}
}

// Run blocks until ctx is cancelled. Call it from its own goroutine.
func (r *Refresher) Run(ctx context.Context) {
	if r.interval <= 0 {
		slog.InfoContext(ctx, "Periodic refresh disabled")
		return
	}

	slog.InfoContext(ctx, "Starting periodic refresh",
		"interval", r.interval.String())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Periodic refresh stopped")
			return
		case <-ticker.C:
			if err := r.store.RefreshAll(ctx); err != nil {
				slog.WarnContext(ctx, "Periodic refresh failed",
					"error", err)
				continue
			}
			slog.DebugContext(ctx, "Periodic refresh completed",
				"version", r.store.Version())
		}
	}
}
