// Package alerts turns sensor readings into notification candidates and
// decides which of them reach the backend notification store.
//
// Pipeline: evaluate thresholds → dedup gate → emit.
// The gate suppresses repeats of the same (category, severity) within one
// wall-clock hour bucket and is cleared in full every hour.
package alerts

import (
	"time"

	"github.com/nutricomm/kebun-gizi/internal/sensor"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const hourBucketMillis = int64(time.Hour / time.Millisecond)

// ResetInterval is how often the gate's emitted-set is cleared in full.
const ResetInterval = time.Hour

// Category names the condition a candidate describes.
type Category string

const (
	SoilMoistureLow  Category = "soil-moisture-low"
	SoilMoistureHigh Category = "soil-moisture-high"
	CO2High          Category = "co2-high"
	TemperatureHigh  Category = "temperature-high"
	TemperatureLow   Category = "temperature-low"
	LightLow         Category = "light-low"
	LightHigh        Category = "light-high"
)

// Severity is the backend's "tingkat".
type Severity string

const (
	Info     Severity = "info"
	Warning  Severity = "warning"
	Critical Severity = "critical"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Candidate is a potential alert derived from one reading.
type Candidate struct {
	Category Category
	Severity Severity
	Title    string
	Message  string
	Icon     string
	Reading  sensor.Reading
}

// Key identifies a candidate for deduplication.
type Key struct {
	Category   Category
	Severity   Severity
	HourBucket int64
}

// HourBucket returns floor(unixMillis / 3_600_000).
func HourBucket(t time.Time) int64 {
	ms := t.UnixMilli()
	b := ms / hourBucketMillis
	if ms < 0 && ms%hourBucketMillis != 0 {
		b--
	}
	return b
}

// KeyFor builds the dedup key of c observed at now.
func KeyFor(c Candidate, now time.Time) Key {
	return Key{Category: c.Category, Severity: c.Severity, HourBucket: HourBucket(now)}
}

// Clock supplies the current time to the gate.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
