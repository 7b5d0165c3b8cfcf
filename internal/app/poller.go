package app

import (
	"context"
	log "log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/bobmap/internal/bobmap"
	"github.com/five82/bobmap/internal/social"
	"github.com/five82/bobmap/internal/state"
)

const (
	defaultPollInterval = 10 * time.Second
	maxBackoff          = 30 * time.Second
	// statsConcurrency bounds concurrent stats requests per refresh.
	statsConcurrency = 4
)

// StartPoller launches a background goroutine that keeps the social store,
// the feed and the like counters fresh. Consecutive failures back off
// exponentially up to maxBackoff. It returns immediately.
func StartPoller(ctx context.Context, store *social.Store, feed *state.Store, api bobmap.Fetcher, interval time.Duration) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go func() {
		failures := 0
		for {
			if err := refresh(ctx, store, feed, api); err != nil {
				failures++
			} else {
				failures = 0
			}

			timer := time.NewTimer(calculateBackoff(failures, interval))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

// calculateBackoff doubles base for every consecutive failure, capped at
// maxBackoff. A failure never shortens the wait below base.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 || base >= maxBackoff {
		return base
	}
	wait := base
	for i := 0; i < failures; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}

// refresh pulls persisted state written by other clients, then the feed,
// then authoritative counts for every subject in the feed.
func refresh(ctx context.Context, store *social.Store, feed *state.Store, api bobmap.Fetcher) error {
	store.SyncWithRemote()

	playlists, err := api.FetchPlaylists(ctx)
	feed.Update(playlists, err)
	if err != nil {
		log.Warn("feed poll failed", "error", err)
		return err
	}

	return refreshStats(ctx, store, api, feed.Snapshot().Subjects())
}

// refreshStats fetches counts concurrently and applies each as it arrives.
// A failed subject keeps its local count.
func refreshStats(ctx context.Context, store *social.Store, api bobmap.Fetcher, subjects []social.Subject) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statsConcurrency)

	for _, subject := range subjects {
		g.Go(func() error {
			stats, err := api.FetchStats(gctx, subject)
			if err != nil {
				log.Debug("stats poll failed", "subject", subject.String(), "error", err)
				return nil
			}
			store.ReconcileCount(subject.Type, subject.ID, stats.LikeCount)
			return nil
		})
	}
	return g.Wait()
}
