// Command agent is the community garden monitoring agent. It keeps a live
// sensor feed from the garden backend, raises deduplicated alerts and
// serves the duty rotation over a local API.
//
// Usage:
//
//	kebun-agent
//	BACKEND_HOST=192.168.137.1 API_PORT=8080 kebun-agent

// @title Kebun Gizi Agent API
// @version 1.0.0
// @description Local API of the community garden agent: duty rotation, latest live sensor reading and backend settings.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @contact.name Nutricomm
// @license.name MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/nutricomm/kebun-gizi/internal/alerts"
	"github.com/nutricomm/kebun-gizi/internal/api"
	"github.com/nutricomm/kebun-gizi/internal/api/handler"
	"github.com/nutricomm/kebun-gizi/internal/backend"
	"github.com/nutricomm/kebun-gizi/internal/cache"
	"github.com/nutricomm/kebun-gizi/internal/config"
	"github.com/nutricomm/kebun-gizi/internal/livedata"
	"github.com/nutricomm/kebun-gizi/internal/maintenance"
	"github.com/nutricomm/kebun-gizi/internal/rotation"
	"github.com/nutricomm/kebun-gizi/internal/sensor"

	_ "github.com/nutricomm/kebun-gizi/docs" // swagger docs
)

// alertQueueSize bounds readings waiting for the alert pipeline. When the
// backend is slow the oldest pending readings are dropped.
const alertQueueSize = 16

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Roster
	roster, err := rotation.NewSource(cfg.RosterFile)
	if err != nil {
		logger.Error("Failed to load roster", "path", cfg.RosterFile, "error", err)
		os.Exit(1)
	}
	logger.Info("Roster loaded", "source", rosterLabel(roster), "participants", len(roster.Roster()))

	// Backend and caches
	endpoints := config.NewEndpoints(cfg)
	client := backend.NewClient(endpoints, cfg.RequestTimeout, logger)
	appCache := cache.New(cfg.CacheEnabled)
	latest := cache.NewLatest()
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Alert pipeline
	thresholds := thresholdsFrom(cfg)
	var emitter alerts.Emitter
	if cfg.UserID != "" {
		emitter = backend.NewNotificationEmitter(client, cfg.UserID, cfg.GardenID)
	} else {
		logger.Info("Notification emission disabled (no USER_ID), alerts are logged only")
	}
	gate := alerts.NewGate()
	pipeline := alerts.NewPipeline(thresholds, gate, emitter, logger)

	queue := make(chan sensor.Reading, alertQueueSize)
	go runAlerts(ctx, pipeline, queue, logger)

	// Live data channel
	opts := livedata.Options{
		DialTimeout:    cfg.DialTimeout,
		RequestTimeout: cfg.RequestTimeout,
		PollInterval:   cfg.PollInterval,
		RetryDelay:     cfg.RetryDelay,
		FallbackDelay:  cfg.FallbackDelay,
		MQTTTopic:      cfg.MQTTTopic,
		HTTPClient:     client.HTTPClient(),
		Logger:         logger,
		OnError: func(err error) {
			latest.MarkUnavailable(err)
		},
	}
	onReading := func(r sensor.Reading) {
		latest.Set(r)
		enqueue(queue, r)
	}
	targets := func() ([]string, string) {
		return endpoints.PushCandidates(), endpoints.PollURL()
	}
	live := livedata.NewManager(opts, onReading, targets)
	if err := live.Start(); err != nil {
		logger.Error("Failed to start live data channel", "error", err)
		os.Exit(1)
	}
	defer live.Stop()

	// Start maintenance tickers (gate reset, cache eviction, roster reload)
	gateReset := cfg.DedupResetInterval
	if gateReset <= 0 {
		gateReset = alerts.ResetInterval
	}
	go maintenance.Start(ctx, maintenance.Deps{Gate: gate, Cache: appCache, Roster: roster}, maintenance.Config{
		GateResetInterval:    gateReset,
		CacheEvictInterval:   cfg.CacheEvictInterval,
		RosterReloadInterval: cfg.RosterReloadInterval,
	}, logger)

	// Create router
	router := api.NewRouter(handler.Deps{
		Config:     cfg,
		Endpoints:  endpoints,
		Roster:     roster,
		Cache:      appCache,
		Latest:     latest,
		Live:       live,
		Backend:    client,
		Thresholds: thresholds,
		Logger:     logger,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Kebun Gizi agent",
			"addr", addr,
			"environment", cfg.Environment,
			"backend", endpoints.BackendURL(),
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}

// enqueue hands r to the alert worker without blocking the live channel.
func enqueue(queue chan sensor.Reading, r sensor.Reading) {
	for {
		select {
		case queue <- r:
			return
		default:
		}
		select {
		case <-queue:
		default:
		}
	}
}

// runAlerts feeds queued readings through the pipeline. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func runAlerts(ctx context.Context, p *alerts.Pipeline, queue <-chan sensor.Reading, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-queue:
			res := p.Handle(ctx, r)
			if res.Candidates > 0 {
				logger.Debug("Alert pass",
					"candidates", res.Candidates,
					"emitted", res.Emitted,
					"suppressed", res.Suppressed,
					"failed", res.Failed)
			}
		}
	}
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

func rosterLabel(src *rotation.Source) string {
	if src.Path() == "" {
		return "built-in"
	}
	return src.Path()
}
