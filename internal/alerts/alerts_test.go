package alerts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nutricomm/kebun-gizi/internal/sensor"
)

func reading(t *testing.T, raw string) sensor.Reading {
	t.Helper()
	r, err := sensor.Normalize([]byte(raw), time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return r
}

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

func TestEvaluate_ThreeCandidates(t *testing.T) {
	r := reading(t, `{"soil_moisture": 25, "co2": 1200, "temp": 36}`)
	got := Evaluate(r, DefaultThresholds())

	want := []struct {
		cat Category
		sev Severity
	}{
		{SoilMoistureLow, Warning},
		{CO2High, Critical},
		{TemperatureHigh, Critical},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates (%+v), want %d", len(got), got, len(want))
	}
	for i, w := range want {
		if got[i].Category != w.cat || got[i].Severity != w.sev {
			t.Errorf("candidate %d = %s/%s, want %s/%s", i, got[i].Category, got[i].Severity, w.cat, w.sev)
		}
		if got[i].Message == "" || got[i].Icon == "" {
			t.Errorf("candidate %d missing message or icon", i)
		}
	}
}

func TestEvaluate_Bands(t *testing.T) {
	cases := []struct {
		raw  string
		want []Category
	}{
		{`{"kelembapan_tanah": 85}`, []Category{SoilMoistureHigh}},
		{`{"kelembapan_tanah": 30}`, nil},
		{`{"kelembapan_tanah": 80}`, nil},
		{`{"co2": 1000}`, nil},
		{`{"suhu": 14.9}`, []Category{TemperatureLow}},
		{`{"suhu": 35}`, nil},
		{`{"cahaya": 150}`, []Category{LightLow}},
		{`{"cahaya": 12000}`, []Category{LightHigh}},
		{`{"cahaya": 0}`, []Category{LightLow}},
		{`{"suhu": 28.4, "kelembapan_tanah": 40.3, "cahaya": 560, "co2": 420}`, nil},
		{`{}`, nil},
	}
	for _, tc := range cases {
		got := Evaluate(reading(t, tc.raw), DefaultThresholds())
		if len(got) != len(tc.want) {
			t.Errorf("%s: got %d candidates, want %d", tc.raw, len(got), len(tc.want))
			continue
		}
		for i := range got {
			if got[i].Category != tc.want[i] {
				t.Errorf("%s: candidate %d = %s, want %s", tc.raw, i, got[i].Category, tc.want[i])
			}
		}
	}
}

func TestEvaluate_LightHighDisabled(t *testing.T) {
	th := DefaultThresholds()
	th.LightHigh = 0
	if got := Evaluate(reading(t, `{"light": 50000}`), th); len(got) != 0 {
		t.Fatalf("got %+v, want none", got)
	}
}

func TestGate_SameBucket(t *testing.T) {
	g := NewGate()
	c := Candidate{Category: CO2High, Severity: Critical}
	at := fixedClock(time.Date(2025, 1, 1, 10, 5, 0, 0, time.UTC))
	later := fixedClock(time.Date(2025, 1, 1, 10, 55, 0, 0, time.UTC))

	if !g.ShouldEmit(c, at) {
		t.Fatal("first ShouldEmit = false, want true")
	}
	if g.ShouldEmit(c, later) {
		t.Fatal("second ShouldEmit in same bucket = true, want false")
	}
}

func TestGate_DifferentBuckets(t *testing.T) {
	g := NewGate()
	c := Candidate{Category: CO2High, Severity: Critical}
	if !g.ShouldEmit(c, fixedClock(time.Date(2025, 1, 1, 10, 59, 59, 0, time.UTC))) {
		t.Fatal("first ShouldEmit = false")
	}
	if !g.ShouldEmit(c, fixedClock(time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC))) {
		t.Fatal("ShouldEmit in next bucket = false, want true")
	}
}

func TestGate_KeyIncludesSeverity(t *testing.T) {
	g := NewGate()
	clock := fixedClock(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	if !g.ShouldEmit(Candidate{Category: TemperatureHigh, Severity: Critical}, clock) {
		t.Fatal("critical suppressed")
	}
	if !g.ShouldEmit(Candidate{Category: TemperatureHigh, Severity: Warning}, clock) {
		t.Fatal("warning suppressed by critical")
	}
	if g.Len() != 2 {
		t.Fatalf("Len = %d, want 2", g.Len())
	}
}

func TestGate_Reset(t *testing.T) {
	g := NewGate()
	c := Candidate{Category: LightLow, Severity: Info}
	clock := fixedClock(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	g.ShouldEmit(c, clock)
	g.Reset()
	if g.Len() != 0 {
		t.Fatalf("Len after Reset = %d", g.Len())
	}
	if !g.ShouldEmit(c, clock) {
		t.Fatal("ShouldEmit after Reset = false, want true")
	}
}

func TestGate_RunClearsPeriodically(t *testing.T) {
	g := NewGate()
	clock := fixedClock(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	g.ShouldEmit(Candidate{Category: CO2High, Severity: Critical}, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for g.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("gate was not cleared")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHourBucket(t *testing.T) {
	if got := HourBucket(time.UnixMilli(3_599_999)); got != 0 {
		t.Errorf("HourBucket(3599999ms) = %d", got)
	}
	if got := HourBucket(time.UnixMilli(3_600_000)); got != 1 {
		t.Errorf("HourBucket(3600000ms) = %d", got)
	}
	if got := HourBucket(time.UnixMilli(-1)); got != -1 {
		t.Errorf("HourBucket(-1ms) = %d", got)
	}
}

type recordingEmitter struct {
	got     []Candidate
	skipped map[Category]bool
	err     error
}

func (e *recordingEmitter) Emit(_ context.Context, c Candidate) (bool, error) {
	if e.err != nil {
		return false, e.err
	}
	e.got = append(e.got, c)
	return e.skipped[c.Category], nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipeline_DedupAcrossReadings(t *testing.T) {
	em := &recordingEmitter{}
	p := NewPipeline(DefaultThresholds(), NewGate(), em, quietLogger()).
		WithClock(fixedClock(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)))

	r := reading(t, `{"soil_moisture": 25, "co2": 1200, "temp": 36}`)
	first := p.Handle(context.Background(), r)
	second := p.Handle(context.Background(), r)

	if first.Candidates != 3 || first.Emitted != 3 {
		t.Fatalf("first pass %+v", first)
	}
	if second.Emitted != 0 || second.Suppressed != 3 {
		t.Fatalf("second pass %+v", second)
	}
	if len(em.got) != 3 {
		t.Fatalf("emitter saw %d candidates, want 3", len(em.got))
	}
}

func TestPipeline_BackendSkipAndFailure(t *testing.T) {
	ctx := context.Background()
	clock := fixedClock(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))

	em := &recordingEmitter{skipped: map[Category]bool{CO2High: true}}
	p := NewPipeline(DefaultThresholds(), nil, em, quietLogger()).WithClock(clock)
	res := p.Handle(ctx, reading(t, `{"co2": 1500}`))
	if res.Suppressed != 1 || res.Emitted != 0 {
		t.Fatalf("backend skip not counted as suppressed: %+v", res)
	}

	failing := &recordingEmitter{err: errors.New("connection refused")}
	p = NewPipeline(DefaultThresholds(), nil, failing, quietLogger()).WithClock(clock)
	res = p.Handle(ctx, reading(t, `{"co2": 1500}`))
	if res.Failed != 1 {
		t.Fatalf("failure not counted: %+v", res)
	}
	if p.Gate().Len() != 1 {
		t.Fatalf("gate should keep the failed key, Len = %d", p.Gate().Len())
	}
}
