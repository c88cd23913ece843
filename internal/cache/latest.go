package cache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nutricomm/kebun-gizi/internal/sensor"
)

// LiveState says whether the latest reading can be shown as live data.
type LiveState string

const (
	StateLoading     LiveState = "loading"
	StateLive        LiveState = "live"
	StateUnavailable LiveState = "unavailable"
)

// Snapshot is what the API serves for the latest reading. Reading is nil
// until one arrives, so clients never see zeroed values passed off as live.
type Snapshot struct {
	State     LiveState       `json:"state"`
	Reading   *sensor.Reading `json:"reading,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitzero"`
}

// Latest holds the most recent reading and its encoded form.
type Latest struct {
	mu   sync.RWMutex
	snap Snapshot
	data []byte
	etag string
}

// NewLatest returns a holder in the loading state.
func NewLatest() *Latest {
	l := &Latest{}
	l.store(Snapshot{State: StateLoading})
	return l
}

// Set records r as the live reading.
func (l *Latest) Set(r sensor.Reading) {
	l.store(Snapshot{State: StateLive, Reading: &r, UpdatedAt: time.Now().UTC()})
}

// MarkUnavailable records that no data source could be reached. A reading
// that already arrived is kept; the state only changes while none has.
func (l *Latest) MarkUnavailable(err error) {
	l.mu.RLock()
	live := l.snap.Reading != nil
	l.mu.RUnlock()
	if live {
		return
	}
	msg := "no sensor data available"
	if err != nil {
		msg = err.Error()
	}
	l.store(Snapshot{State: StateUnavailable, Error: msg, UpdatedAt: time.Now().UTC()})
}

// Reset returns the holder to the loading state, e.g. after the backend
// address changed.
func (l *Latest) Reset() {
	l.store(Snapshot{State: StateLoading})
}

// Snapshot returns the current snapshot.
func (l *Latest) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

// JSON returns the encoded snapshot and its ETag.
func (l *Latest) JSON() ([]byte, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data, l.etag
}

func (l *Latest) store(s Snapshot) {
	data, err := json.Marshal(s)
	if err != nil {
		data = []byte(`{"state":"` + string(s.State) + `"}`)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap = s
	l.data = data
	l.etag = ComputeETag(data)
}
