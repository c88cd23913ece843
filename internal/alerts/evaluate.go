package alerts

import (
	"fmt"

	"github.com/nutricomm/kebun-gizi/internal/sensor"
)

// Thresholds are the numeric bands per field. A value strictly below a Low
// bound or strictly above a High bound triggers.
type Thresholds struct {
	SoilLow  float64 `json:"soil_low"`
	SoilHigh float64 `json:"soil_high"`
	CO2High  float64 `json:"co2_high"`
	TempHigh float64 `json:"temp_high"`
	TempLow  float64 `json:"temp_low"`
	LightLow float64 `json:"light_low"`
	// LightHigh of 0 disables the bright-light alert.
	LightHigh float64 `json:"light_high"`
}

// DefaultThresholds returns the garden's standard bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SoilLow:   30,
		SoilHigh:  80,
		CO2High:   1000,
		TempHigh:  35,
		TempLow:   15,
		LightLow:  200,
		LightHigh: 10000,
	}
}

// Evaluate returns the candidates triggered by r, in field order soil, CO2,
// temperature, light. At most one candidate per field; fields the source
// did not supply are skipped.
func Evaluate(r sensor.Reading, t Thresholds) []Candidate {
	var out []Candidate
	add := func(cat Category, sev Severity, title, msg, icon string) {
		out = append(out, Candidate{
			Category: cat,
			Severity: sev,
			Title:    title,
			Message:  msg,
			Icon:     icon,
			Reading:  r,
		})
	}

	if r.Has(sensor.FieldSoilMoisture) {
		switch v := r.SoilMoisturePct; {
		case v < t.SoilLow:
			add(SoilMoistureLow, Warning, "Kelembapan tanah rendah",
				fmt.Sprintf("Kelembapan tanah %.1f%%, waktunya menyiram", v), "water")
		case v > t.SoilHigh:
			add(SoilMoistureHigh, Warning, "Kelembapan tanah tinggi",
				fmt.Sprintf("Kelembapan tanah %.1f%%, kurangi penyiraman", v), "water")
		}
	}

	if r.Has(sensor.FieldCO2) && r.CO2PPM > t.CO2High {
		add(CO2High, Critical, "CO₂ terlalu tinggi",
			fmt.Sprintf("CO₂ %.0f ppm, periksa sirkulasi udara", r.CO2PPM), "cloud")
	}

	if r.Has(sensor.FieldTemperature) {
		switch v := r.TemperatureC; {
		case v > t.TempHigh:
			add(TemperatureHigh, Critical, "Suhu terlalu tinggi",
				fmt.Sprintf("Suhu %.1f°C, perhatikan tanaman", v), "thermometer")
		case v < t.TempLow:
			add(TemperatureLow, Warning, "Suhu terlalu rendah",
				fmt.Sprintf("Suhu %.1f°C, lindungi tanaman dari dingin", v), "thermometer")
		}
	}

	if r.Has(sensor.FieldLight) {
		switch v := r.LightLux; {
		case v < t.LightLow:
			add(LightLow, Info, "Cahaya kurang",
				fmt.Sprintf("Cahaya %.0f lux, pertimbangkan pencahayaan tambahan", v), "sunny")
		case t.LightHigh > 0 && v > t.LightHigh:
			add(LightHigh, Info, "Cahaya berlebih",
				fmt.Sprintf("Cahaya %.0f lux, pertimbangkan peneduh", v), "sunny")
		}
	}

	return out
}
