package analytics

import (
	"context"
	"log"
	"time"

	"campus-gate-backend/internal/broadcast"
)

// Refresher periodically recomputes the live snapshot and publishes a stats
// event on the global topic whenever the counts change.
type Refresher struct {
	engine   *Engine
	hub      broadcast.Publisher
	interval time.Duration
	last     *Snapshot
}

// NewRefresher creates a Refresher.
func NewRefresher(engine *Engine, hub broadcast.Publisher, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Refresher{engine: engine, hub: hub, interval: interval}
}

// Run refreshes until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	log.Printf("Starting stats refresher (every %s)...", r.interval)

	r.RefreshOnce(ctx)

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Stats refresher shutting down.")
			return
		case <-timer.C:
			r.RefreshOnce(ctx)
			timer.Reset(r.interval)
		}
	}
}

// RefreshOnce computes one snapshot and publishes it if it changed. It
// reports whether an event was published.
func (r *Refresher) RefreshOnce(ctx context.Context) bool {
	snap, err := r.engine.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Error refreshing stats: %v", err)
		}
		return false
	}
	if r.last.sameCounts(snap) {
		return false
	}
	r.last = snap
	r.hub.Publish(broadcast.Global, broadcast.Event{Type: broadcast.EventStats, Stats: snap, At: snap.At})
	return true
}
