package rotation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rosterFile is the on-disk shape:
//
//	participants:
//	  - id: USR001
//	    name: Keluarga Budi
//	    slot: 1
type rosterFile struct {
	Participants []Entry `yaml:"participants"`
}

// LoadRoster reads and validates a YAML roster file.
func LoadRoster(path string) (Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	return ParseRoster(data)
}

// ParseRoster decodes and validates YAML roster bytes.
func ParseRoster(data []byte) (Roster, error) {
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	r := Roster(f.Participants)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// DefaultRoster is the five-family rotation the garden started with.
func DefaultRoster() Roster {
	return Roster{
		{ParticipantID: "USR001", DisplayName: "Keluarga 1", Slot: 1},
		{ParticipantID: "USR002", DisplayName: "Keluarga 2", Slot: 2},
		{ParticipantID: "USR003", DisplayName: "Keluarga 3", Slot: 3},
		{ParticipantID: "USR004", DisplayName: "Keluarga 4", Slot: 4},
		{ParticipantID: "USR005", DisplayName: "Keluarga 5", Slot: 5},
	}
}
