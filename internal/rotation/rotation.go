// Package rotation maps calendar days to the roster participant on garden
// duty. The schedule is a pure function of a reference date and an ordered
// roster: day i of a window belongs to slot (i mod N)+1, so the full roster
// repeats every N days regardless of month or year boundaries.
package rotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Entry is one rotating participant (a family, in the garden's case).
type Entry struct {
	ParticipantID string `yaml:"id" json:"participant_id"`
	DisplayName   string `yaml:"name" json:"display_name"`
	Slot          int    `yaml:"slot" json:"slot"`
}

// Roster is the ordered list of participants. It is replaced wholesale on
// reload and never mutated in place.
type Roster []Entry

// Status is the temporal position of an assignment relative to the
// reference date.
type Status int

const (
	StatusPast Status = iota
	StatusToday
	StatusFuture
)

func (s Status) String() string {
	switch s {
	case StatusPast:
		return "past"
	case StatusToday:
		return "today"
	case StatusFuture:
		return "future"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalJSON encodes the status as its name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Assignment is a derived duty assignment. It is computed on demand and
// never persisted.
type Assignment struct {
	Date          time.Time `json:"date"`
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	Slot          int       `json:"slot"`
	Status        Status    `json:"status"`
}

// DateString returns the assignment date as YYYY-MM-DD.
func (a Assignment) DateString() string {
	return a.Date.Format(time.DateOnly)
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// ErrInvalidRoster is matched by every InvalidRosterError.
var ErrInvalidRoster = errors.New("invalid roster")

// InvalidRosterError reports why a roster failed validation.
type InvalidRosterError struct {
	Reason string
}

func (e *InvalidRosterError) Error() string {
	return "invalid roster: " + e.Reason
}

func (e *InvalidRosterError) Is(target error) bool {
	return target == ErrInvalidRoster
}

func invalid(format string, args ...any) error {
	return &InvalidRosterError{Reason: fmt.Sprintf(format, args...)}
}

// --------------------------------------------------------------------------
// Validation
// --------------------------------------------------------------------------

// Validate checks that the roster is non-empty, that participant IDs are
// unique and non-empty, and that slots are exactly {1..N}.
func (r Roster) Validate() error {
	n := len(r)
	if n == 0 {
		return invalid("roster is empty")
	}
	seenSlot := make(map[int]string, n)
	seenID := make(map[string]bool, n)
	for _, e := range r {
		id := strings.TrimSpace(e.ParticipantID)
		if id == "" {
			return invalid("participant at slot %d has no id", e.Slot)
		}
		if seenID[id] {
			return invalid("participant %q appears more than once", id)
		}
		seenID[id] = true

		if e.Slot < 1 || e.Slot > n {
			return invalid("slot %d of %q outside 1..%d", e.Slot, id, n)
		}
		if other, dup := seenSlot[e.Slot]; dup {
			return invalid("slot %d shared by %q and %q", e.Slot, other, id)
		}
		seenSlot[e.Slot] = id
	}
	return nil
}

// bySlot indexes a validated roster by slot. Index 0 is unused.
func (r Roster) bySlot() []Entry {
	idx := make([]Entry, len(r)+1)
	for _, e := range r {
		idx[e.Slot] = e
	}
	return idx
}

// Lookup returns the entry for a participant ID.
func (r Roster) Lookup(participantID string) (Entry, bool) {
	for _, e := range r {
		if e.ParticipantID == participantID {
			return e, true
		}
	}
	return Entry{}, false
}

// --------------------------------------------------------------------------
// Scheduling
// --------------------------------------------------------------------------

// civilDate drops the time of day, keeping the calendar date the caller
// observed in its own location.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ScheduleWindow computes `days` consecutive assignments starting at the
// reference date. The first is StatusToday and the rest StatusFuture; the
// window never contains past days. days <= 0 yields an empty slice.
func ScheduleWindow(ref time.Time, roster Roster, days int) ([]Assignment, error) {
	if err := roster.Validate(); err != nil {
		return nil, err
	}
	if days <= 0 {
		return []Assignment{}, nil
	}

	start := civilDate(ref)
	slots := roster.bySlot()
	n := len(roster)

	out := make([]Assignment, 0, days)
	for i := 0; i < days; i++ {
		e := slots[(i%n)+1]
		status := StatusFuture
		if i == 0 {
			status = StatusToday
		}
		out = append(out, Assignment{
			Date:          start.AddDate(0, 0, i),
			ParticipantID: e.ParticipantID,
			DisplayName:   e.DisplayName,
			Slot:          e.Slot,
			Status:        status,
		})
	}
	return out, nil
}

// DutyEntryForToday returns the assignment for the reference date.
func DutyEntryForToday(ref time.Time, roster Roster) (Assignment, error) {
	window, err := ScheduleWindow(ref, roster, 1)
	if err != nil {
		return Assignment{}, err
	}
	return window[0], nil
}

// IsOnDutyToday reports whether participantID holds the reference date.
func IsOnDutyToday(participantID string, ref time.Time, roster Roster) (bool, error) {
	today, err := DutyEntryForToday(ref, roster)
	if err != nil {
		return false, err
	}
	return today.ParticipantID == participantID, nil
}

// ScheduleFor returns the days within the window that belong to one
// participant.
func ScheduleFor(participantID string, ref time.Time, roster Roster, days int) ([]Assignment, error) {
	window, err := ScheduleWindow(ref, roster, days)
	if err != nil {
		return nil, err
	}
	if len(window) == 0 {
		return []Assignment{}, nil
	}
	mine := make([]Assignment, 0, days/len(roster)+1)
	for _, a := range window {
		if a.ParticipantID == participantID {
			mine = append(mine, a)
		}
	}
	return mine, nil
}
