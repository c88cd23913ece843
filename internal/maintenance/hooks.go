package maintenance

import (
	"fmt"
	"log/slog"

	"github.com/nutricomm/kebun-gizi/internal/cache"
	"github.com/nutricomm/kebun-gizi/internal/rotation"
)

// SchedulePrefix is the cache key prefix of every schedule-derived response.
const SchedulePrefix = "schedule:"

// ReloadRoster re-reads the roster file and, when it changed, drops cached
// schedule responses so the next request recomputes them. A roster that
// fails validation is reported and the previous one stays active.
// Called by the reload ticker and by the API's reload endpoint.
func ReloadRoster(src *rotation.Source, c *cache.Cache, logger *slog.Logger) (bool, error) {
	changed, err := src.Reload()
	if err != nil {
		logger.Warn("Roster reload failed, keeping previous roster",
			"path", src.Path(), "error", err)
		return false, fmt.Errorf("reload roster: %w", err)
	}
	if !changed {
		return false, nil
	}

	dropped := 0
	if c != nil {
		dropped = c.InvalidatePrefix(SchedulePrefix)
	}
	logger.Info("Roster reloaded",
		"path", src.Path(), "participants", len(src.Roster()), "cache_dropped", dropped)
	return true, nil
}
