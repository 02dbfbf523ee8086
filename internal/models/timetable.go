package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
)

// TimetableRecord is the header row of the single current timetable.
type TimetableRecord struct {
	ID          string         `db:"id"`
	Finalized   bool           `db:"finalized"`
	Approved    bool           `db:"approved"`
	Warnings    types.JSONText `db:"warnings"`
	GeneratedAt *time.Time     `db:"generated_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// TimetableEntry is one persisted placement.
type TimetableEntry struct {
	ID          string `db:"id" json:"id"`
	TimetableID string `db:"timetable_id" json:"-"`
	Position    int    `db:"position" json:"-"`
	Subject     string `db:"subject" json:"subject"`
	Day         string `db:"day" json:"day"`
	TimeSlot    string `db:"time_slot" json:"time"`
	Teacher     string `db:"teacher" json:"teacher"`
	Room        string `db:"room" json:"room"`
}

// Entry converts the row into the engine representation.
func (e TimetableEntry) Entry() scheduler.Entry {
	return scheduler.Entry{ID: e.ID, Subject: e.Subject, Day: e.Day, Time: e.TimeSlot, Teacher: e.Teacher, Room: e.Room}
}

// EntryFromScheduler converts an engine entry into a row.
func EntryFromScheduler(e scheduler.Entry) TimetableEntry {
	return TimetableEntry{ID: e.ID, Subject: e.Subject, Day: e.Day, TimeSlot: e.Time, Teacher: e.Teacher, Room: e.Room}
}

// Timetable is the current timetable with its workflow state.
type Timetable struct {
	ID          string           `json:"id"`
	Entries     []TimetableEntry `json:"entries"`
	Warnings    []string         `json:"warnings"`
	Finalized   bool             `json:"finalized"`
	Approved    bool             `json:"approved"`
	GeneratedAt *time.Time       `json:"generated_at,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// SchedulerEntries returns the entries in engine form, preserving order.
func (t *Timetable) SchedulerEntries() []scheduler.Entry {
	out := make([]scheduler.Entry, len(t.Entries))
	for i, e := range t.Entries {
		out[i] = e.Entry()
	}
	return out
}

// GenerationResult is returned by a generation run.
type GenerationResult struct {
	Timetable *Timetable `json:"timetable"`
	Scheduled int        `json:"scheduled"`
	Warnings  []string   `json:"warnings"`
}

// ConflictReport lists validator findings for the current timetable.
type ConflictReport struct {
	Conflicts []string `json:"conflicts"`
	Valid     bool     `json:"valid"`
}
