package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nutricomm/kebun-gizi/internal/alerts"
	"github.com/nutricomm/kebun-gizi/internal/cache"
	"github.com/nutricomm/kebun-gizi/internal/config"
	"github.com/nutricomm/kebun-gizi/internal/livedata"
	"github.com/nutricomm/kebun-gizi/internal/rotation"
	"github.com/nutricomm/kebun-gizi/internal/sensor"
)

// fakeLive stands in for the live data manager.
type fakeLive struct {
	status     livedata.Status
	refreshErr error
	restarts   int
	onRefresh  func()
}

func (f *fakeLive) Status() livedata.Status { return f.status }

func (f *fakeLive) Refresh(ctx context.Context) error {
	if f.refreshErr != nil {
		return f.refreshErr
	}
	if f.onRefresh != nil {
		f.onRefresh()
	}
	return nil
}

func (f *fakeLive) Restart() error {
	f.restarts++
	return nil
}

var refDate = time.Date(2025, 3, 10, 9, 30, 0, 0, time.Local)

func testHandler(t *testing.T) (*Handler, *fakeLive) {
	t.Helper()
	src, err := rotation.NewSource("")
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	cfg := &config.Config{
		BackendHost:  "127.0.0.1",
		BackendPort:  5000,
		GardenID:     "KBG001",
		ScheduleDays: 7,
	}
	live := &fakeLive{status: livedata.Status{SessionID: "s1", State: livedata.StatePushActive}}
	h := New(Deps{
		Config:     cfg,
		Endpoints:  config.NewEndpoints(cfg),
		Roster:     src,
		Cache:      cache.New(true),
		Live:       live,
		Thresholds: alerts.DefaultThresholds(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:        func() time.Time { return refDate },
	})
	return h, live
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestGetDutyToday(t *testing.T) {
	h, _ := testHandler(t)

	rec := httptest.NewRecorder()
	h.GetDutyToday(rec, httptest.NewRequest(http.MethodGet, "/api/v1/duty/today?user_id=USR001", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var got struct {
		Assignment assignmentView `json:"assignment"`
		UserID     string         `json:"user_id"`
		OnDuty     bool           `json:"on_duty"`
	}
	decode(t, rec, &got)
	if got.Assignment.Date != "2025-03-10" || got.Assignment.Slot != 1 {
		t.Errorf("assignment = %+v", got.Assignment)
	}
	if got.Assignment.Status != rotation.StatusToday {
		t.Errorf("status = %v, want today", got.Assignment.Status)
	}
	if !got.OnDuty || got.UserID != "USR001" {
		t.Errorf("on_duty = %v for %q, want true", got.OnDuty, got.UserID)
	}
}

func TestGetDutyToday_BadDate(t *testing.T) {
	h, _ := testHandler(t)
	rec := httptest.NewRecorder()
	h.GetDutyToday(rec, httptest.NewRequest(http.MethodGet, "/api/v1/duty/today?date=10-03-2025", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetSchedule_CachedWithETag(t *testing.T) {
	h, _ := testHandler(t)

	rec := httptest.NewRecorder()
	h.GetSchedule(rec, httptest.NewRequest(http.MethodGet, "/api/v1/duty/schedule?days=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", rec.Header().Get("X-Cache"))
	}
	var days []assignmentView
	decode(t, rec, &days)
	if len(days) != 5 {
		t.Fatalf("len = %d, want 5", len(days))
	}
	for i, d := range days {
		if d.Slot != i+1 {
			t.Errorf("day %d slot = %d, want %d", i, d.Slot, i+1)
		}
	}
	if days[0].Status != rotation.StatusToday || days[4].Status != rotation.StatusFuture {
		t.Errorf("statuses = %v, %v", days[0].Status, days[4].Status)
	}

	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/duty/schedule?days=5", nil)
	req.Header.Set("If-None-Match", etag)
	h.GetSchedule(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.GetSchedule(rec, httptest.NewRequest(http.MethodGet, "/api/v1/duty/schedule?days=5", nil))
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Errorf("X-Cache = %q, want HIT", rec.Header().Get("X-Cache"))
	}
}

func TestGetSchedule_DefaultAndInvalidDays(t *testing.T) {
	h, _ := testHandler(t)

	rec := httptest.NewRecorder()
	h.GetSchedule(rec, httptest.NewRequest(http.MethodGet, "/api/v1/duty/schedule", nil))
	var days []assignmentView
	decode(t, rec, &days)
	if len(days) != h.Config.ScheduleDays {
		t.Errorf("len = %d, want %d", len(days), h.Config.ScheduleDays)
	}

	for _, q := range []string{"days=-1", "days=abc", "days=400"} {
		rec := httptest.NewRecorder()
		h.GetSchedule(rec, httptest.NewRequest(http.MethodGet, "/api/v1/duty/schedule?"+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestGetParticipantSchedule(t *testing.T) {
	h, _ := testHandler(t)

	rec := httptest.NewRecorder()
	req := withParam(httptest.NewRequest(http.MethodGet, "/api/v1/duty/USR002?days=10", nil), "participantID", "USR002")
	h.GetParticipantSchedule(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var got struct {
		OnDuty bool             `json:"on_duty"`
		Days   []assignmentView `json:"days"`
	}
	decode(t, rec, &got)
	if got.OnDuty {
		t.Error("USR002 should not be on duty on the reference date")
	}
	want := []string{"2025-03-11", "2025-03-16"}
	if len(got.Days) != len(want) {
		t.Fatalf("days = %+v, want %v", got.Days, want)
	}
	for i, d := range got.Days {
		if d.Date != want[i] || d.ParticipantID != "USR002" {
			t.Errorf("day %d = %+v, want %s", i, d, want[i])
		}
	}

	rec = httptest.NewRecorder()
	req = withParam(httptest.NewRequest(http.MethodGet, "/api/v1/duty/NOPE", nil), "participantID", "NOPE")
	h.GetParticipantSchedule(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown participant status = %d, want 404", rec.Code)
	}
}

func TestReloadRoster_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	good := "participants:\n  - {id: A, name: Alpha, slot: 1}\n  - {id: B, name: Beta, slot: 2}\n"
	if err := os.WriteFile(path, []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := rotation.NewSource(path)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	h, _ := testHandler(t)
	h.Roster = src

	bad := "participants:\n  - {id: A, name: Alpha, slot: 1}\n  - {id: B, name: Beta, slot: 3}\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.ReloadRoster(rec, httptest.NewRequest(http.MethodPost, "/api/v1/duty/reload", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if n := len(h.Roster.Roster()); n != 2 {
		t.Errorf("roster len = %d after rejected reload, want 2", n)
	}
}

func TestGetLatestReading_States(t *testing.T) {
	h, _ := testHandler(t)

	get := func() cache.Snapshot {
		rec := httptest.NewRecorder()
		h.GetLatestReading(rec, httptest.NewRequest(http.MethodGet, "/api/v1/readings/latest", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var s cache.Snapshot
		decode(t, rec, &s)
		return s
	}

	if s := get(); s.State != cache.StateLoading || s.Reading != nil {
		t.Errorf("initial = %+v, want loading without reading", s)
	}

	h.Latest.MarkUnavailable(errors.New("no data source reachable"))
	if s := get(); s.State != cache.StateUnavailable || s.Reading != nil {
		t.Errorf("after failure = %+v, want unavailable without reading", s)
	}

	h.Latest.Set(sensor.Reading{GardenID: "KBG001", TemperatureC: 28.5, Present: sensor.FieldTemperature})
	s := get()
	if s.State != cache.StateLive || s.Reading == nil || s.Reading.TemperatureC != 28.5 {
		t.Errorf("after reading = %+v, want live 28.5", s)
	}
}

func TestRefreshReading(t *testing.T) {
	h, live := testHandler(t)
	live.onRefresh = func() { h.Latest.Set(sensor.Reading{GardenID: "KBG001", SoilMoisturePct: 40}) }

	rec := httptest.NewRecorder()
	h.RefreshReading(rec, httptest.NewRequest(http.MethodPost, "/api/v1/readings/refresh", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var s cache.Snapshot
	decode(t, rec, &s)
	if s.State != cache.StateLive {
		t.Errorf("state = %s, want live", s.State)
	}

	tests := []struct {
		err  error
		want int
	}{
		{livedata.ErrNotRunning, http.StatusServiceUnavailable},
		{livedata.ErrStopped, http.StatusServiceUnavailable},
		{errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		live.refreshErr = tt.err
		rec := httptest.NewRecorder()
		h.RefreshReading(rec, httptest.NewRequest(http.MethodPost, "/api/v1/readings/refresh", nil))
		if rec.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestHealthCheckChannel(t *testing.T) {
	h, _ := testHandler(t)

	rec := httptest.NewRecorder()
	h.HealthCheckChannel(rec, httptest.NewRequest(http.MethodGet, "/health/channel", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("loading: status = %d, want 503", rec.Code)
	}

	h.Latest.Set(sensor.Reading{GardenID: "KBG001"})
	rec = httptest.NewRecorder()
	h.HealthCheckChannel(rec, httptest.NewRequest(http.MethodGet, "/health/channel", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("live: status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"push_active"`) {
		t.Errorf("body %s missing transport state", rec.Body)
	}
}

func TestSetBackend(t *testing.T) {
	h, live := testHandler(t)
	h.Latest.Set(sensor.Reading{GardenID: "KBG001"})

	body := strings.NewReader(`{"host":"10.0.0.7","port":5050}`)
	rec := httptest.NewRecorder()
	h.SetBackend(rec, httptest.NewRequest(http.MethodPut, "/api/v1/backend?force=true", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var got backendView
	decode(t, rec, &got)
	if got.URL != "http://10.0.0.7:5050" || got.WebSocket != "ws://10.0.0.7:5050" {
		t.Errorf("view = %+v", got)
	}
	if live.restarts != 1 {
		t.Errorf("restarts = %d, want 1", live.restarts)
	}
	if s := h.Latest.Snapshot(); s.State != cache.StateLoading {
		t.Errorf("latest state = %s after switch, want loading", s.State)
	}
}

func TestSetBackend_Invalid(t *testing.T) {
	h, live := testHandler(t)

	for _, body := range []string{
		`{"host":"","port":5000}`,
		`{"host":"10.0.0.7","port":70000}`,
		`{"host":"10.0.0.7","port":5000,"extra":1}`,
		`not json`,
	} {
		rec := httptest.NewRecorder()
		h.SetBackend(rec, httptest.NewRequest(http.MethodPut, "/api/v1/backend?force=true", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, rec.Code)
		}
	}
	if live.restarts != 0 {
		t.Errorf("restarts = %d, want 0", live.restarts)
	}
	if host, port := h.Endpoints.Backend(); host != "127.0.0.1" || port != 5000 {
		t.Errorf("backend changed to %s:%d", host, port)
	}
}

func TestExportSchedule(t *testing.T) {
	h, _ := testHandler(t)

	rec := httptest.NewRecorder()
	h.ExportSchedule(rec, httptest.NewRequest(http.MethodGet, "/api/v1/duty/export?format=pdf&days=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "jadwal-KBG001-2025-03-10.pdf") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF-") {
		t.Error("body is not a PDF")
	}
}
