// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/agent and cmd/kebunctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Backend paths (remote REST API)
// --------------------------------------------------------------------------

const (
	SensorDataPath   = "/api/sensors/data"
	SensorHealthPath = "/api/sensors/health"
	NotificationPath = "/api/notifikasi/"
	AttendancePath   = "/api/absensi"
	ActivityPath     = "/api/aktivitas"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Backend
	BackendHost        string
	BackendPort        int
	BackendCommonHosts []string

	// Live data channel
	PushEndpoints  []string // explicit candidates; derived from hosts when empty
	MQTTBroker     string
	MQTTTopic      string
	PollPath       string
	PollInterval   time.Duration
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	RetryDelay     time.Duration
	FallbackDelay  time.Duration

	// Garden identity
	GardenID string
	UserID   string

	// Duty rotation
	RosterFile           string
	RosterReloadInterval time.Duration
	ScheduleDays         int

	// Response cache
	CacheEnabled       bool
	CacheEvictInterval time.Duration

	// Notifications
	DedupResetInterval time.Duration
	SoilLow            float64
	SoilHigh           float64
	CO2High            float64
	TempHigh           float64
	TempLow            float64
	LightLow           float64
	LightHigh          float64

	// Local API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		BackendHost: envOr("BACKEND_HOST", "192.168.1.5"),
		BackendPort: envInt("BACKEND_PORT", 5000),
		BackendCommonHosts: envList("BACKEND_COMMON_HOSTS", []string{
			"192.168.1.5",
			"192.168.137.1",
			"localhost",
		}),

		PushEndpoints:  envList("PUSH_ENDPOINTS", nil),
		MQTTBroker:     envOr("MQTT_BROKER", ""),
		MQTTTopic:      envOr("MQTT_TOPIC", "nutricomm/sensor/#"),
		PollPath:       envOr("POLL_PATH", SensorDataPath),
		PollInterval:   envDuration("POLL_INTERVAL_MS", time.Millisecond, 1000),
		DialTimeout:    envDuration("DIAL_TIMEOUT_SECONDS", time.Second, 5),
		RequestTimeout: envDuration("REQUEST_TIMEOUT_SECONDS", time.Second, 5),
		RetryDelay:     envDuration("RETRY_DELAY_MS", time.Millisecond, 2000),
		FallbackDelay:  envDuration("FALLBACK_DELAY_MS", time.Millisecond, 3000),

		GardenID: envOr("GARDEN_ID", "KBG001"),
		UserID:   envOr("USER_ID", ""),

		RosterFile:           envOr("ROSTER_FILE", ""),
		RosterReloadInterval: envDuration("ROSTER_RELOAD_SECONDS", time.Second, 60),
		ScheduleDays:         envInt("SCHEDULE_DAYS", 30),

		CacheEnabled:       envBool("CACHE_ENABLED", true),
		CacheEvictInterval: envDuration("CACHE_EVICT_MINUTES", time.Minute, 5),

		DedupResetInterval: envDuration("DEDUP_RESET_MINUTES", time.Minute, 60),
		SoilLow:            envFloat("SOIL_LOW", 30),
		SoilHigh:           envFloat("SOIL_HIGH", 80),
		CO2High:            envFloat("CO2_HIGH", 1000),
		TempHigh:           envFloat("TEMP_HIGH", 35),
		TempLow:            envFloat("TEMP_LOW", 15),
		LightLow:           envFloat("LIGHT_LOW", 200),
		LightHigh:          envFloat("LIGHT_HIGH", 10000),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8080)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:8081",
			"http://localhost:19006",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,
	}

	if cfg.BackendPort <= 0 || cfg.BackendPort > 65535 {
		return nil, fmt.Errorf("BACKEND_PORT %d out of range", cfg.BackendPort)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if cfg.ScheduleDays <= 0 {
		return nil, fmt.Errorf("SCHEDULE_DAYS must be positive")
	}
	if cfg.SoilLow >= cfg.SoilHigh {
		return nil, fmt.Errorf("SOIL_LOW (%v) must be below SOIL_HIGH (%v)", cfg.SoilLow, cfg.SoilHigh)
	}
	if cfg.TempLow >= cfg.TempHigh {
		return nil, fmt.Errorf("TEMP_LOW (%v) must be below TEMP_HIGH (%v)", cfg.TempLow, cfg.TempHigh)
	}
	return cfg, nil
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envDuration reads an integer count of unit.
func envDuration(key string, unit time.Duration, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * unit
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
