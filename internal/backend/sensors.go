package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nutricomm/kebun-gizi/internal/config"
	"github.com/nutricomm/kebun-gizi/internal/sensor"
)

// LatestReading fetches and normalizes the newest sensor snapshot.
func (c *Client) LatestReading(ctx context.Context) (sensor.Reading, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, config.SensorDataPath, nil, nil, &raw); err != nil {
		return sensor.Reading{}, err
	}
	r, err := sensor.Normalize(raw, time.Now())
	if err != nil {
		return sensor.Reading{}, fmt.Errorf("latest reading: %w", err)
	}
	return r, nil
}

// Health calls the backend health endpoint and returns its JSON body.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, config.SensorHealthPath, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping reports whether a backend answers on host:port, without touching the
// configured endpoints. Used to test an address before switching to it.
func Ping(ctx context.Context, host string, port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + config.SensorHealthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
