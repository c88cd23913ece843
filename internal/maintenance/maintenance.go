// Package maintenance runs periodic background tasks as Go tickers: the
// hourly full clear of the notification dedup gate, response cache
// eviction, and roster file reloads.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/nutricomm/kebun-gizi/internal/alerts"
	"github.com/nutricomm/kebun-gizi/internal/cache"
	"github.com/nutricomm/kebun-gizi/internal/rotation"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	GateResetInterval    time.Duration // Full clear of the dedup emitted-set
	CacheEvictInterval   time.Duration // Drop expired API responses
	RosterReloadInterval time.Duration // Re-read the roster file if it changed
}

// Deps are the components the tasks act on. Nil members disable their task.
type Deps struct {
	Gate   *alerts.Gate
	Cache  *cache.Cache
	Roster *rotation.Source
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, deps Deps, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"gate_reset", cfg.GateResetInterval,
		"cache_evict", cfg.CacheEvictInterval,
		"roster_reload", cfg.RosterReloadInterval)

	tickers := make([]*time.Ticker, 0, 3)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	// Gate reset: bound the emitted-set regardless of key age
	if cfg.GateResetInterval > 0 && deps.Gate != nil {
		go deps.Gate.Run(ctx, cfg.GateResetInterval)
	}

	if cfg.CacheEvictInterval > 0 && deps.Cache != nil {
		t := time.NewTicker(cfg.CacheEvictInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { evictCache(deps.Cache, logger) })
	}

	// Roster reload only matters when the roster comes from a file
	if cfg.RosterReloadInterval > 0 && deps.Roster != nil && deps.Roster.Path() != "" {
		t := time.NewTicker(cfg.RosterReloadInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { _, _ = ReloadRoster(deps.Roster, deps.Cache, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

func evictCache(c *cache.Cache, logger *slog.Logger) {
	if n := c.Evict(); n > 0 {
		logger.Debug("Evicted expired cache entries", "count", n)
	}
}
