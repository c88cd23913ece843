// Command kebunctl is the garden operator CLI: duty rotation lookups,
// attendance check-in, activity logging, a live reading monitor and calendar
// export.
//
// Usage:
//
//	kebunctl schedule --days 14
//	kebunctl duty today
//	kebunctl duty check USR003
//	kebunctl duty checkin --user USR001 --name "Keluarga 1"
//	kebunctl duty checkout --user USR001
//	kebunctl activity add --kind "Menyiram tanaman" --desc "pagi"
//	kebunctl activity list
//	kebunctl watch --duration 5m
//	kebunctl ping 192.168.137.1 --port 5000
//	kebunctl export --format pdf --out jadwal.pdf
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nutricomm/kebun-gizi/internal/alerts"
	"github.com/nutricomm/kebun-gizi/internal/backend"
	"github.com/nutricomm/kebun-gizi/internal/config"
	"github.com/nutricomm/kebun-gizi/internal/rotation"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "kebunctl",
		Short:        "Kebun Gizi garden operator CLI",
		SilenceUsage: true,
	}

	var verbose bool
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if verbose {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}
	}

	root.AddCommand(scheduleCmd())
	root.AddCommand(dutyCmd())
	root.AddCommand(activityCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(pingCmd())
	root.AddCommand(exportCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// env is what every command needs after configuration is loaded.
type env struct {
	cfg       *config.Config
	endpoints *config.Endpoints
	roster    *rotation.Source
	client    *backend.Client
}

// run handles config loading, roster loading, and context cancellation.
func run(fn func(ctx context.Context, e *env) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	roster, err := rotation.NewSource(cfg.RosterFile)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	endpoints := config.NewEndpoints(cfg)

	return fn(ctx, &env{
		cfg:       cfg,
		endpoints: endpoints,
		roster:    roster,
		client:    backend.NewClient(endpoints, cfg.RequestTimeout, logger),
	})
}

// parseDate reads a --date flag value, defaulting to today.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}
	return t, nil
}

func thresholdsFrom(cfg *config.Config) alerts.Thresholds {
	return alerts.Thresholds{
		SoilLow:   cfg.SoilLow,
		SoilHigh:  cfg.SoilHigh,
		CO2High:   cfg.CO2High,
		TempHigh:  cfg.TempHigh,
		TempLow:   cfg.TempLow,
		LightLow:  cfg.LightLow,
		LightHigh: cfg.LightHigh,
	}
}
