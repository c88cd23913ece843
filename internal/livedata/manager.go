package livedata

import (
	"context"
	"errors"
	"sync"

	"github.com/nutricomm/kebun-gizi/internal/sensor"
)

// ErrNotRunning is returned by Manager.Refresh before Start.
var ErrNotRunning = errors.New("live data channel not running")

// Targets returns the push candidates and poll URI to use for a new channel.
type Targets func() (endpoints []string, pollURI string)

// Manager owns the current Channel. Channels are single-use, so moving to a
// new backend stops the running one and starts a fresh instance.
type Manager struct {
	opts      Options
	onReading func(sensor.Reading)
	targets   Targets

	mu sync.Mutex
	ch *Channel
	h  *Handle
}

// NewManager returns a manager that is not yet running.
func NewManager(opts Options, onReading func(sensor.Reading), targets Targets) *Manager {
	return &Manager{opts: opts, onReading: onReading, targets: targets}
}

// Start stops the current channel, if any, and starts a new one against the
// current targets.
func (m *Manager) Start() error {
	endpoints, pollURI := m.targets()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.h != nil {
		m.h.Stop()
	}
	ch := New(m.opts)
	h, err := ch.Start(m.onReading, endpoints, pollURI)
	if err != nil {
		m.ch, m.h = nil, nil
		return err
	}
	m.ch, m.h = ch, h
	return nil
}

// Restart is Start under the name the API uses after a reconfigure.
func (m *Manager) Restart() error {
	return m.Start()
}

// Stop stops the current channel and waits for its goroutines.
func (m *Manager) Stop() {
	m.mu.Lock()
	h := m.h
	m.mu.Unlock()
	if h == nil {
		return
	}
	h.Stop()
	<-h.Done()
}

// Refresh forces an immediate poll on the current channel.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	h := m.h
	m.mu.Unlock()
	if h == nil {
		return ErrNotRunning
	}
	return h.Refresh(ctx)
}

// Status reports on the current channel; an idle status before Start.
func (m *Manager) Status() Status {
	m.mu.Lock()
	ch := m.ch
	m.mu.Unlock()
	if ch == nil {
		return Status{State: StateIdle}
	}
	return ch.Status()
}
