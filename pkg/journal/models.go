package journal

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrEntryNotFound is returned when a journal entry does not exist.
var ErrEntryNotFound = errors.New("journal entry not found")

// Entry is one journaled management operation.
//
// The target and soft-miss name lists are stored as JSON blobs so the same
// schema works on SQLite and PostgreSQL. The decoded slices live in the
// Parsed* fields, which List and Get populate.
type Entry struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// Op is the boundary operation name (snapshot, destroy_snaps, hold, ...).
	Op string `gorm:"not null;size:64;index" json:"op"`

	// Outcome is success, soft_misses or fault.
	Outcome string `gorm:"not null;size:32;index" json:"outcome"`

	// Targets is the JSON-encoded list of names the call addressed.
	Targets string `gorm:"type:text" json:"-"`

	// SoftMisses is the JSON-encoded list of already-absent targets.
	// Empty unless Outcome is soft_misses.
	SoftMisses string `gorm:"type:text" json:"-"`

	// FaultKind classifies the failure when Outcome is fault.
	FaultKind string `gorm:"size:64" json:"fault_kind,omitempty"`

	// Errno is the engine's coarse status. Zero on success.
	Errno int `json:"errno"`

	// Duration is the wall-clock time of the call, stored as nanoseconds.
	Duration time.Duration `json:"duration"`

	// Decoded name lists (not stored in DB)
	ParsedTargets    []string `gorm:"-" json:"targets"`
	ParsedSoftMisses []string `gorm:"-" json:"soft_misses,omitempty"`
}

// TableName returns the table name for Entry.
func (Entry) TableName() string {
	return "journal_entries"
}

// SetTargets encodes names into the stored Targets blob.
func (e *Entry) SetTargets(names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	e.Targets = string(data)
	e.ParsedTargets = names
	return nil
}

// GetTargets returns the decoded target list.
func (e *Entry) GetTargets() ([]string, error) {
	if e.ParsedTargets != nil {
		return e.ParsedTargets, nil
	}
	if e.Targets == "" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(e.Targets), &names); err != nil {
		return nil, err
	}
	e.ParsedTargets = names
	return names, nil
}

// SetSoftMisses encodes names into the stored SoftMisses blob.
// An empty list stores nothing.
func (e *Entry) SetSoftMisses(names []string) error {
	if len(names) == 0 {
		e.SoftMisses = ""
		e.ParsedSoftMisses = nil
		return nil
	}
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	e.SoftMisses = string(data)
	e.ParsedSoftMisses = names
	return nil
}

// GetSoftMisses returns the decoded soft-miss list.
func (e *Entry) GetSoftMisses() ([]string, error) {
	if e.ParsedSoftMisses != nil {
		return e.ParsedSoftMisses, nil
	}
	if e.SoftMisses == "" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(e.SoftMisses), &names); err != nil {
		return nil, err
	}
	e.ParsedSoftMisses = names
	return names, nil
}

// decode populates both Parsed* fields from the stored blobs.
func (e *Entry) decode() error {
	if _, err := e.GetTargets(); err != nil {
		return err
	}
	if _, err := e.GetSoftMisses(); err != nil {
		return err
	}
	return nil
}

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&Entry{},
	}
}
