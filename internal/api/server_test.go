package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nutricomm/kebun-gizi/internal/alerts"
	"github.com/nutricomm/kebun-gizi/internal/api/handler"
	"github.com/nutricomm/kebun-gizi/internal/cache"
	"github.com/nutricomm/kebun-gizi/internal/config"
	"github.com/nutricomm/kebun-gizi/internal/livedata"
	"github.com/nutricomm/kebun-gizi/internal/rotation"
)

type idleLive struct{}

func (idleLive) Status() livedata.Status           { return livedata.Status{State: livedata.StateIdle} }
func (idleLive) Refresh(ctx context.Context) error { return livedata.ErrNotRunning }
func (idleLive) Restart() error                    { return nil }

func testDeps(t *testing.T, cfg *config.Config) handler.Deps {
	t.Helper()
	src, err := rotation.NewSource("")
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	return handler.Deps{
		Config:     cfg,
		Endpoints:  config.NewEndpoints(cfg),
		Roster:     src,
		Cache:      cache.New(true),
		Latest:     cache.NewLatest(),
		Live:       idleLive{},
		Thresholds: alerts.DefaultThresholds(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func baseConfig() *config.Config {
	return &config.Config{
		BackendHost:      "127.0.0.1",
		BackendPort:      5000,
		GardenID:         "KBG001",
		ScheduleDays:     30,
		CORSAllowOrigins: []string{"http://localhost:8081"},
	}
}

func TestRouter_Routes(t *testing.T) {
	srv := httptest.NewServer(NewRouter(testDeps(t, baseConfig())))
	defer srv.Close()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/health/cache", http.StatusOK},
		{http.MethodGet, "/health/channel", http.StatusServiceUnavailable},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/duty/today", http.StatusOK},
		{http.MethodGet, "/api/v1/duty/schedule?days=3", http.StatusOK},
		{http.MethodGet, "/api/v1/duty/USR003", http.StatusOK},
		{http.MethodPost, "/api/v1/duty/reload", http.StatusOK},
		{http.MethodGet, "/api/v1/duty/export?format=xlsx&days=5", http.StatusOK},
		{http.MethodGet, "/api/v1/duty/export?format=csv", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/readings/latest", http.StatusOK},
		{http.MethodPost, "/api/v1/readings/refresh", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/alerts/thresholds", http.StatusOK},
		{http.MethodGet, "/api/v1/backend", http.StatusOK},
		{http.MethodDelete, "/api/v1/backend", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/nope/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, srv.URL+tt.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tt.method, tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.want)
		}
		if resp.Header.Get("X-Process-Time") == "" {
			t.Errorf("%s %s missing X-Process-Time", tt.method, tt.path)
		}
	}
}

func TestRouter_CORS(t *testing.T) {
	srv := httptest.NewServer(NewRouter(testDeps(t, baseConfig())))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/backend", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:8081" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPut) {
		t.Errorf("Allow-Methods = %q, want PUT", got)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := baseConfig()
	cfg.RateLimitEnabled = true
	cfg.RateLimitRequests = 2
	cfg.RateLimitWindow = time.Hour
	srv := httptest.NewServer(NewRouter(testDeps(t, cfg)))
	defer srv.Close()

	var last *http.Response
	for i := 0; i < 5; i++ {
		resp, err := http.Get(srv.URL + "/health")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		last = resp
	}
	if last.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.StatusCode)
	}
	if last.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}
