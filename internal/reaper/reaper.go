package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EntryStore is the interface the reaper needs from the config store.
type EntryStore interface {
	DeleteEntriesExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Reaper periodically purges whitelist entries that expired longer than the
// grace period ago. Expired entries are already invisible to verification;
// this only reclaims storage.
type Reaper struct {
	store    EntryStore
	interval time.Duration
	grace    time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Reaper. It does not start any background work.
func New(store EntryStore, interval, grace time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		store:    store,
		interval: interval,
		grace:    grace,
		logger:   logger,
	}
}

// Start begins the background purge loop. It runs one sweep immediately and
// then repeats every interval. Non-blocking.
func (r *Reaper) Start() {
	if r == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.sweep(ctx)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.sweep(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the background loop and waits for an in-flight sweep to
// finish.
func (r *Reaper) Shutdown() {
	if r == nil {
		return
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Reaper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.grace)
	n, err := r.store.DeleteEntriesExpiredBefore(ctx, cutoff)
	if err != nil {
		r.logger.Warn("whitelist purge failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("purged expired whitelist entries", "count", n, "cutoff", cutoff)
	}
}
