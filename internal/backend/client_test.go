package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nutricomm/kebun-gizi/internal/alerts"
	"github.com/nutricomm/kebun-gizi/internal/config"
	"github.com/nutricomm/kebun-gizi/internal/sensor"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient points a client at srv.
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("split %s: %v", srv.URL, err)
	}
	port, _ := strconv.Atoi(portStr)
	ep := config.NewEndpoints(&config.Config{BackendHost: host, BackendPort: port, PollPath: config.SensorDataPath})
	return NewClient(ep, 2*time.Second, quietLogger())
}

func TestLatestReading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != config.SensorDataPath {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		io.WriteString(w, `{"id_kebun":"KBG001","suhu":"27.5","kelembapan_tanah":41,"timestamp":"2025-10-20 08:00:00"}`)
	}))
	defer srv.Close()

	r, err := newTestClient(t, srv).LatestReading(context.Background())
	if err != nil {
		t.Fatalf("LatestReading: %v", err)
	}
	if r.GardenID != "KBG001" || r.TemperatureC != 27.5 || r.SoilMoisturePct != 41 {
		t.Fatalf("unexpected reading: %+v", r)
	}
	if r.Has(sensor.FieldLight) {
		t.Fatal("light should be absent")
	}
	if r.ObservedAt.Hour() != 8 {
		t.Fatalf("ObservedAt = %v", r.ObservedAt)
	}
}

func TestLatestReading_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, strings.Repeat("x", 500))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).LatestReading(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("Status = %d", apiErr.Status)
	}
	if len(apiErr.Body) != maxErrorBodySize+3 {
		t.Fatalf("body not truncated: %d bytes", len(apiErr.Body))
	}
}

func TestLatestReading_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[1,2,3]`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).LatestReading(context.Background())
	if !errors.Is(err, sensor.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == config.SensorHealthPath {
			io.WriteString(w, `{"status":"ok"}`)
			return
		}
		http.NotFound(w, r)
	}))
	host, portStr, _ := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	port, _ := strconv.Atoi(portStr)

	if !Ping(context.Background(), host, port, time.Second) {
		t.Fatal("expected reachable backend")
	}
	srv.Close()
	if Ping(context.Background(), host, port, 200*time.Millisecond) {
		t.Fatal("expected closed backend to be unreachable")
	}
}

func TestNotificationEmitter(t *testing.T) {
	var got Notification
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != config.NotificationPath {
			http.NotFound(w, r)
			return
		}
		calls++
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		skipped := calls > 1
		json.NewEncoder(w).Encode(map[string]any{"success": true, "skipped": skipped, "id_notifikasi": "N1"})
	}))
	defer srv.Close()

	em := NewNotificationEmitter(newTestClient(t, srv), "USR001", "KBG001")
	cand := alerts.Candidate{
		Category: alerts.SoilMoistureLow,
		Severity: alerts.Warning,
		Title:    "Tanah Kering",
		Message:  "Kelembapan tanah 20%",
		Icon:     "water",
		Reading: sensor.Reading{
			SoilMoisturePct: 20,
			ObservedAt:      time.Date(2025, 10, 20, 8, 0, 0, 0, time.UTC),
			Present:         sensor.FieldSoilMoisture,
		},
	}

	skipped, err := em.Emit(context.Background(), cand)
	if err != nil || skipped {
		t.Fatalf("first Emit: skipped=%v err=%v", skipped, err)
	}
	if got.GardenID != "KBG001" || got.Kind != "sensor" || got.Category != "soil-moisture-low" || got.Severity != "warning" {
		t.Fatalf("unexpected body: %+v", got)
	}
	if got.SensorData["kelembapan_tanah"] != float64(20) {
		t.Fatalf("sensor_data = %v", got.SensorData)
	}
	if _, ok := got.SensorData["cahaya"]; ok {
		t.Fatal("absent light field was sent")
	}

	skipped, err = em.Emit(context.Background(), cand)
	if err != nil || !skipped {
		t.Fatalf("second Emit: skipped=%v err=%v", skipped, err)
	}
}

func TestCreateNotification_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":false,"error":"kebun tidak ditemukan"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).CreateNotification(context.Background(), Notification{GardenID: "X"})
	if err == nil || !strings.Contains(err.Error(), "kebun tidak ditemukan") {
		t.Fatalf("expected backend error, got %v", err)
	}
}

// attendanceServer fakes the backend's attendance endpoints for one garden.
type attendanceServer struct {
	checkedIn  bool
	checkedOut bool
	by         string
	posts      []string
}

func (a *attendanceServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case config.AttendancePath + "/status":
		json.NewEncoder(w).Encode(map[string]any{
			"success":         true,
			"has_checked_in":  a.checkedIn,
			"has_checked_out": a.checkedOut,
			"is_my_absensi":   a.by == r.URL.Query().Get("user_id"),
			"petugas_nama":    a.by,
		})
	case config.AttendancePath + "/checkin":
		var req attendanceRequest
		json.NewDecoder(r.Body).Decode(&req)
		a.checkedIn = true
		a.by = req.UserID
		a.posts = append(a.posts, "checkin")
		io.WriteString(w, `{"success":true}`)
	case config.AttendancePath + "/checkout":
		a.checkedOut = true
		a.posts = append(a.posts, "checkout")
		io.WriteString(w, `{"success":true}`)
	default:
		http.NotFound(w, r)
	}
}

func TestAttendance_Flow(t *testing.T) {
	fake := &attendanceServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	if err := c.CheckOut(ctx, "USR001", "KBG001"); !errors.Is(err, ErrNotCheckedIn) {
		t.Fatalf("CheckOut before check-in: %v", err)
	}
	if err := c.CheckIn(ctx, "USR001", "KBG001", "Keluarga 1", "test"); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	err := c.CheckIn(ctx, "USR002", "KBG001", "Keluarga 2", "")
	if !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("second CheckIn: %v", err)
	}
	if !strings.Contains(err.Error(), "USR001") {
		t.Fatalf("error should name who checked in: %v", err)
	}
	if err := c.CheckOut(ctx, "USR001", "KBG001"); err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if err := c.CheckOut(ctx, "USR001", "KBG001"); err == nil {
		t.Fatal("expected error for second check-out")
	}
	if strings.Join(fake.posts, ",") != "checkin,checkout" {
		t.Fatalf("posts = %v", fake.posts)
	}
}

func TestAttendanceStatus_CheckedInBy(t *testing.T) {
	cases := []struct {
		st   AttendanceStatus
		want string
	}{
		{AttendanceStatus{IsMine: true, OfficerName: "Keluarga 1"}, "you"},
		{AttendanceStatus{OfficerName: "Keluarga 2"}, "Keluarga 2"},
		{AttendanceStatus{}, "another garden member"},
	}
	for _, tc := range cases {
		if got := tc.st.CheckedInBy(); got != tc.want {
			t.Errorf("CheckedInBy(%+v) = %q, want %q", tc.st, got, tc.want)
		}
	}
}

func TestResponseBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"suhu":`+strings.Repeat(" ", maxResponseBody)+`25}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).LatestReading(context.Background())
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected size limit error, got %v", err)
	}
}

// activityServer serves attendance status and the activity endpoints.
type activityServer struct {
	attendanceServer
	created []activityRequest
}

func (a *activityServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == config.ActivityPath+"/":
		var req activityRequest
		json.NewDecoder(r.Body).Decode(&req)
		a.created = append(a.created, req)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"aktivitas": map[string]any{
				"_id": "a1", "user_id": req.UserID, "kebun_id": req.GardenID,
				"jenis_aktivitas": req.Kind, "deskripsi": req.Description, "tanggal": "2025-10-20",
			},
		})
	case r.URL.Path == config.ActivityPath+"/kebun/KBG001/today":
		list := make([]map[string]any, 0, len(a.created))
		for _, req := range a.created {
			list = append(list, map[string]any{"user_id": req.UserID, "jenis_aktivitas": req.Kind})
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "aktivitas": list})
	default:
		a.attendanceServer.ServeHTTP(w, r)
	}
}

func TestActivity_GatedOnCheckIn(t *testing.T) {
	fake := &activityServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	if _, err := c.CreateActivity(ctx, "USR001", "KBG001", "Keluarga 1", "Memanen", ""); !errors.Is(err, ErrActivityNotAllowed) {
		t.Fatalf("before check-in: %v", err)
	}
	if err := c.CheckIn(ctx, "USR001", "KBG001", "Keluarga 1", ""); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if _, err := c.CreateActivity(ctx, "USR002", "KBG001", "Keluarga 2", "Memanen", ""); !errors.Is(err, ErrActivityNotAllowed) {
		t.Fatalf("other member: %v", err)
	}
	if len(fake.created) != 0 {
		t.Fatalf("rejected activities were posted: %+v", fake.created)
	}

	kind := JoinKinds([]string{"Menyiram tanaman", " ", "Memanen"}, " Panen cabai ")
	a, err := c.CreateActivity(ctx, "USR001", "KBG001", "Keluarga 1", kind, "pagi")
	if err != nil {
		t.Fatalf("CreateActivity: %v", err)
	}
	if a.ID != "a1" || a.Kind != "Menyiram tanaman, Memanen, Panen cabai" || a.Description != "pagi" {
		t.Fatalf("activity = %+v", a)
	}

	list, err := c.TodayActivities(ctx, "KBG001")
	if err != nil {
		t.Fatalf("TodayActivities: %v", err)
	}
	if len(list) != 1 || list[0].UserID != "USR001" {
		t.Fatalf("list = %+v", list)
	}
}

func TestCreateActivity_RequiresKind(t *testing.T) {
	fake := &activityServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := newTestClient(t, srv).CreateActivity(context.Background(), "USR001", "KBG001", "", JoinKinds(nil, "  "), "")
	if err == nil {
		t.Fatal("expected error for empty activity kind")
	}
}

func TestTodayActivities_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"aktivitas":null}`)
	}))
	defer srv.Close()

	list, err := newTestClient(t, srv).TodayActivities(context.Background(), "KBG001")
	if err != nil {
		t.Fatalf("TodayActivities: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("list = %v", list)
	}
}
