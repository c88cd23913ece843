package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nutricomm/kebun-gizi/internal/alerts"
	"github.com/nutricomm/kebun-gizi/internal/config"
	"github.com/nutricomm/kebun-gizi/internal/sensor"
)

// Notification is the backend's create-notification body.
type Notification struct {
	UserID     string         `json:"user_id,omitempty"`
	GardenID   string         `json:"kebun_id"`
	Kind       string         `json:"jenis"`
	Category   string         `json:"kategori"`
	Title      string         `json:"judul"`
	Message    string         `json:"pesan"`
	Severity   string         `json:"tingkat"`
	Icon       string         `json:"icon"`
	SensorData map[string]any `json:"sensor_data,omitempty"`
}

// CreateResult is the backend's answer. Skipped is set when the backend
// already stored the same category and severity within the last hour.
type CreateResult struct {
	Success        bool   `json:"success"`
	Skipped        bool   `json:"skipped"`
	NotificationID string `json:"id_notifikasi"`
	Message        string `json:"message"`
	Error          string `json:"error"`
}

// CreateNotification posts a notification.
func (c *Client) CreateNotification(ctx context.Context, n Notification) (CreateResult, error) {
	var res CreateResult
	if err := c.do(ctx, http.MethodPost, config.NotificationPath, nil, n, &res); err != nil {
		return CreateResult{}, fmt.Errorf("create notification: %w", err)
	}
	if !res.Success {
		return res, fmt.Errorf("create notification: %s", res.Error)
	}
	return res, nil
}

// NotificationEmitter adapts the client to alerts.Emitter for one garden.
type NotificationEmitter struct {
	client   *Client
	userID   string
	gardenID string
}

// NewNotificationEmitter returns an emitter posting on behalf of userID.
func NewNotificationEmitter(c *Client, userID, gardenID string) *NotificationEmitter {
	return &NotificationEmitter{client: c, userID: userID, gardenID: gardenID}
}

// Emit implements alerts.Emitter.
func (e *NotificationEmitter) Emit(ctx context.Context, cand alerts.Candidate) (bool, error) {
	gardenID := cand.Reading.GardenID
	if gardenID == "" {
		gardenID = e.gardenID
	}
	res, err := e.client.CreateNotification(ctx, Notification{
		UserID:     e.userID,
		GardenID:   gardenID,
		Kind:       "sensor",
		Category:   string(cand.Category),
		Title:      cand.Title,
		Message:    cand.Message,
		Severity:   string(cand.Severity),
		Icon:       cand.Icon,
		SensorData: sensorData(cand.Reading),
	})
	if err != nil {
		return false, err
	}
	return res.Skipped, nil
}

// sensorData renders r with the backend's field names. Absent fields are
// left out.
func sensorData(r sensor.Reading) map[string]any {
	m := map[string]any{"timestamp": r.ObservedAt.Format(time.RFC3339)}
	if r.GardenID != "" {
		m["id_kebun"] = r.GardenID
	}
	fields := []struct {
		f   sensor.Field
		key string
		v   float64
	}{
		{sensor.FieldTemperature, "suhu", r.TemperatureC},
		{sensor.FieldAirHumidity, "kelembapan_udara", r.AirHumidityPct},
		{sensor.FieldSoilMoisture, "kelembapan_tanah", r.SoilMoisturePct},
		{sensor.FieldLight, "cahaya", r.LightLux},
		{sensor.FieldCO2, "co2", r.CO2PPM},
	}
	for _, f := range fields {
		if r.Has(f.f) {
			m[f.key] = f.v
		}
	}
	return m
}
