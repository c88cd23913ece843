// Package sensor defines the normalized garden sensor reading and the
// boundary step that converts loosely-typed backend payloads into it.
//
// The backend and the ESP32 firmware speak Indonesian field names
// (suhu, kelembapan_tanah, ...); newer payloads use English ones. Both are
// accepted. Numeric values may arrive as JSON numbers or numeric strings;
// anything else defaults to 0 and is marked absent.
package sensor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Field is a bitmask naming the numeric fields of a Reading.
type Field uint8

const (
	FieldTemperature Field = 1 << iota
	FieldAirHumidity
	FieldSoilMoisture
	FieldLight
	FieldCO2
)

// Reading is one normalized measurement snapshot. Readings are values: each
// new one supersedes the previous, nothing is merged.
type Reading struct {
	GardenID        string    `json:"garden_id"`
	TemperatureC    float64   `json:"temperature_c"`
	AirHumidityPct  float64   `json:"air_humidity_pct"`
	SoilMoisturePct float64   `json:"soil_moisture_pct"`
	LightLux        float64   `json:"light_lux"`
	CO2PPM          float64   `json:"co2_ppm"`
	ObservedAt      time.Time `json:"observed_at"`

	// Present records which numeric fields the source actually supplied.
	Present Field `json:"-"`
}

// Has reports whether the source supplied field f.
func (r Reading) Has(f Field) bool {
	return r.Present&f != 0
}

// MarshalJSON encodes fields the source did not supply as null, so a
// missing sensor is never shown as a zero measurement.
func (r Reading) MarshalJSON() ([]byte, error) {
	opt := func(f Field, v float64) *float64 {
		if !r.Has(f) {
			return nil
		}
		return &v
	}
	return json.Marshal(struct {
		GardenID        string    `json:"garden_id"`
		TemperatureC    *float64  `json:"temperature_c"`
		AirHumidityPct  *float64  `json:"air_humidity_pct"`
		SoilMoisturePct *float64  `json:"soil_moisture_pct"`
		LightLux        *float64  `json:"light_lux"`
		CO2PPM          *float64  `json:"co2_ppm"`
		ObservedAt      time.Time `json:"observed_at"`
	}{
		GardenID:        r.GardenID,
		TemperatureC:    opt(FieldTemperature, r.TemperatureC),
		AirHumidityPct:  opt(FieldAirHumidity, r.AirHumidityPct),
		SoilMoisturePct: opt(FieldSoilMoisture, r.SoilMoisturePct),
		LightLux:        opt(FieldLight, r.LightLux),
		CO2PPM:          opt(FieldCO2, r.CO2PPM),
		ObservedAt:      r.ObservedAt,
	})
}

// ErrMalformed is returned for payloads that are not a JSON object.
var ErrMalformed = errors.New("malformed sensor payload")

var (
	gardenKeys    = []string{"id_kebun", "kebun_id", "garden_id"}
	timestampKeys = []string{"timestamp", "observed_at"}

	numericKeys = []struct {
		field Field
		keys  []string
	}{
		{FieldTemperature, []string{"suhu", "temperature", "temp"}},
		{FieldAirHumidity, []string{"kelembapan_udara", "air_humidity", "humidity"}},
		{FieldSoilMoisture, []string{"kelembapan_tanah", "soil_moisture"}},
		{FieldLight, []string{"cahaya", "light", "lux"}},
		{FieldCO2, []string{"co2"}},
	}
)

// Normalize parses a raw JSON payload received at receivedAt.
func Normalize(raw []byte, receivedAt time.Time) (Reading, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Reading{}, ErrMalformed
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return NormalizeMap(m, receivedAt), nil
}

// NormalizeMap converts an already-decoded payload. A backend envelope of
// the form {"data": {...}} is unwrapped first.
func NormalizeMap(m map[string]any, receivedAt time.Time) Reading {
	if inner, ok := m["data"].(map[string]any); ok {
		m = inner
	}

	r := Reading{GardenID: firstString(m, gardenKeys)}
	for _, nk := range numericKeys {
		v, ok := firstNumber(m, nk.keys)
		if !ok {
			continue
		}
		r.Present |= nk.field
		switch nk.field {
		case FieldTemperature:
			r.TemperatureC = v
		case FieldAirHumidity:
			r.AirHumidityPct = v
		case FieldSoilMoisture:
			r.SoilMoisturePct = v
		case FieldLight:
			r.LightLux = v
		case FieldCO2:
			r.CO2PPM = v
		}
	}

	r.ObservedAt = receivedAt
	for _, k := range timestampKeys {
		if ts, ok := parseTimestamp(m[k]); ok {
			r.ObservedAt = ts
			break
		}
	}
	return r
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func firstNumber(m map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		if v, ok := toNumber(m[k]); ok {
			return v, true
		}
	}
	return 0, false
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateOnly,
}

func parseTimestamp(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		// Firmware sends "2025-10-20 08:30:00".
		s = strings.Replace(s, " ", "T", 1)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	case float64:
		if x <= 0 {
			return time.Time{}, false
		}
		// Epoch milliseconds from JS clients, seconds from Python.
		if x > 1e12 {
			return time.UnixMilli(int64(x)).UTC(), true
		}
		sec, frac := math.Modf(x)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	}
	return time.Time{}, false
}
