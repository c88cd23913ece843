package rotation

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Source holds the active roster and reloads it from its file when the file
// changes. Without a path it serves DefaultRoster forever.
type Source struct {
	mu      sync.RWMutex
	path    string
	roster  Roster
	modTime time.Time
}

// NewSource loads path, or the default roster when path is empty. A file
// that fails validation is an error here; later reloads keep the last good
// roster instead.
func NewSource(path string) (*Source, error) {
	s := &Source{path: path}
	if path == "" {
		s.roster = DefaultRoster()
		return s, nil
	}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the roster file path, empty for the default roster.
func (s *Source) Path() string {
	return s.path
}

// Roster returns a copy of the active roster.
func (s *Source) Roster() Roster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(Roster(nil), s.roster...)
}

// Reload re-reads the file if its modification time changed. It reports
// whether the active roster was replaced.
func (s *Source) Reload() (bool, error) {
	if s.path == "" {
		return false, nil
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return false, fmt.Errorf("stat roster %s: %w", s.path, err)
	}

	s.mu.RLock()
	unchanged := s.roster != nil && info.ModTime().Equal(s.modTime)
	s.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	r, err := LoadRoster(s.path)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.roster = r
	s.modTime = info.ModTime()
	s.mu.Unlock()
	return true, nil
}
