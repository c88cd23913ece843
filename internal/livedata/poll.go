package livedata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nutricomm/kebun-gizi/internal/metrics"
	"github.com/nutricomm/kebun-gizi/internal/sensor"
)

const transportPoll = "poll"

// fetch performs one pull of the latest reading.
func (c *Channel) fetch(ctx context.Context) (sensor.Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pollURI, nil)
	if err != nil {
		return sensor.Reading{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return sensor.Reading{}, fmt.Errorf("poll %s: %w", c.pollURI, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPollBody))
	if err != nil {
		return sensor.Reading{}, fmt.Errorf("read poll body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return sensor.Reading{}, fmt.Errorf("poll %s returned %d", c.pollURI, resp.StatusCode)
	}

	r, err := sensor.Normalize(body, time.Now())
	if err != nil {
		metrics.FrameDiscarded(transportPoll)
		c.mu.Lock()
		c.discarded++
		c.mu.Unlock()
		return sensor.Reading{}, fmt.Errorf("poll %s: %w", c.pollURI, err)
	}
	return r, nil
}

// startPolling launches the poll loop unless it is already running or the
// channel is shutting down.
func (c *Channel) startPolling(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startPollingLocked(ctx)
}

// startPollingLocked is startPolling with c.mu held.
func (c *Channel) startPollingLocked(ctx context.Context) {
	if c.pollCancel != nil || ctx.Err() != nil {
		return
	}
	pctx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.polling = true
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.pollLoop(pctx)
	}()
	c.opts.Logger.Info("Live data polling started", "uri", c.pollURI, "interval", c.opts.PollInterval)
}

// stopPolling cancels the poll loop if it is running.
func (c *Channel) stopPolling() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollCancel == nil {
		return
	}
	c.pollCancel()
	c.pollCancel = nil
	c.polling = false
	c.opts.Logger.Info("Live data polling stopped")
}

// pollLoop fetches once immediately and then on every tick. Failed ticks are
// logged and retried on the next one. Blocks until ctx is cancelled.
func (c *Channel) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		r, err := c.fetch(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			c.opts.Logger.Debug("Poll tick failed", "error", err)
			c.initialFailure(err)
		default:
			c.deliver(r, transportPoll)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
