// Package livedata delivers a continuous stream of sensor readings to one
// consumer. It prefers a push transport (WebSocket or MQTT), cycles through
// candidate endpoints when one fails, and falls back to polling the backend
// over HTTP when push is unavailable.
//
// Transport errors never reach the consumer. The only consumer-visible
// failure is a single *NoDataSourceError, reported through Options.OnError
// when the very first data acquisition fails.
package livedata

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultDialTimeout    = 5 * time.Second
	DefaultRequestTimeout = 5 * time.Second
	DefaultPollInterval   = time.Second
	DefaultRetryDelay     = 2 * time.Second
	DefaultFallbackDelay  = 3 * time.Second
	DefaultMQTTTopic      = "nutricomm/sensor/#"

	maxPollBody = 1 << 20
)

// --------------------------------------------------------------------------
// State
// --------------------------------------------------------------------------

// State is the channel's transport state.
type State int

const (
	StateIdle State = iota
	StateConnectingPush
	StatePushActive
	StatePollingActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnectingPush:
		return "connecting_push"
	case StatePushActive:
		return "push_active"
	case StatePollingActive:
		return "polling_active"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a snapshot of the channel for health reporting.
type Status struct {
	SessionID     string    `json:"session_id"`
	State         State     `json:"state"`
	Endpoint      string    `json:"endpoint,omitempty"`
	Polling       bool      `json:"polling"`
	Delivered     uint64    `json:"delivered"`
	Discarded     uint64    `json:"discarded"`
	LastReadingAt time.Time `json:"last_reading_at,omitzero"`
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrAlreadyStarted is returned by Start on a channel that was started before.
	ErrAlreadyStarted = errors.New("live data channel already started")

	// ErrStopped is returned by Refresh after Stop.
	ErrStopped = errors.New("live data channel stopped")

	// ErrNoDataSource matches *NoDataSourceError.
	ErrNoDataSource = errors.New("no data source reachable")
)

// NoDataSourceError reports that neither transport produced the initial reading.
type NoDataSourceError struct {
	Endpoints []string
	PollURI   string
	Err       error // last poll error
}

func (e *NoDataSourceError) Error() string {
	return fmt.Sprintf("no data source reachable (push candidates %d, poll %s): %v",
		len(e.Endpoints), e.PollURI, e.Err)
}

func (e *NoDataSourceError) Is(target error) bool {
	return target == ErrNoDataSource
}

func (e *NoDataSourceError) Unwrap() error {
	return e.Err
}

// EndpointError is an invalid endpoint passed to Start.
type EndpointError struct {
	Endpoint string
	Reason   string
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("invalid endpoint %q: %s", e.Endpoint, e.Reason)
}

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configure a Channel. Zero values take the package defaults.
type Options struct {
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	PollInterval   time.Duration
	RetryDelay     time.Duration // pause before the next push candidate
	FallbackDelay  time.Duration // push outage tolerated before polling starts
	MQTTTopic      string

	// OnError receives the one-shot *NoDataSourceError.
	OnError func(error)

	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.FallbackDelay <= 0 {
		o.FallbackDelay = DefaultFallbackDelay
	}
	if o.MQTTTopic == "" {
		o.MQTTTopic = DefaultMQTTTopic
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// --------------------------------------------------------------------------
// Endpoint validation
// --------------------------------------------------------------------------

type transportKind int

const (
	kindWebSocket transportKind = iota
	kindMQTT
)

func (k transportKind) String() string {
	if k == kindMQTT {
		return "mqtt"
	}
	return "websocket"
}

func pushKind(endpoint string) (transportKind, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return 0, &EndpointError{Endpoint: endpoint, Reason: err.Error()}
	}
	if u.Host == "" {
		return 0, &EndpointError{Endpoint: endpoint, Reason: "missing host"}
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		return kindWebSocket, nil
	case "mqtt", "mqtts", "tcp", "ssl", "tls":
		return kindMQTT, nil
	default:
		return 0, &EndpointError{Endpoint: endpoint, Reason: "unsupported push scheme " + u.Scheme}
	}
}

func validatePollURI(pollURI string) error {
	u, err := url.Parse(pollURI)
	if err != nil {
		return &EndpointError{Endpoint: pollURI, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &EndpointError{Endpoint: pollURI, Reason: "poll URI must be http or https"}
	}
	if u.Host == "" {
		return &EndpointError{Endpoint: pollURI, Reason: "missing host"}
	}
	return nil
}
