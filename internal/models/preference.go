package models

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
)

// StoredPreference is one row of the preferences table. A submitter holds at most one row per type.
type StoredPreference struct {
	SubmitterType scheduler.SubmitterType `db:"submitter_type" json:"type"`
	SubmitterID   string                  `db:"submitter_id" json:"submitter_id"`
	Subject       string                  `db:"subject" json:"subject"`
	Day           string                  `db:"day" json:"day"`
	TimeSlot      string                  `db:"time_slot" json:"time"`
	Teacher       string                  `db:"teacher" json:"teacher,omitempty"`
	Room          string                  `db:"room" json:"room,omitempty"`
	SubmittedAt   time.Time               `db:"submitted_at" json:"timestamp"`
}

// Preference converts the row into the engine representation.
func (p StoredPreference) Preference() scheduler.Preference {
	return scheduler.Preference{
		Subject:       p.Subject,
		Day:           p.Day,
		Time:          p.TimeSlot,
		Teacher:       p.Teacher,
		Room:          p.Room,
		Timestamp:     p.SubmittedAt,
		SubmitterType: p.SubmitterType,
	}
}

// GroupPreferences builds the per-type submitter maps consumed by the engine.
func GroupPreferences(rows []StoredPreference) scheduler.Preferences {
	prefs := scheduler.Preferences{
		Faculty: make(map[string]scheduler.Preference),
		Student: make(map[string]scheduler.Preference),
	}
	for _, row := range rows {
		switch row.SubmitterType {
		case scheduler.SubmitterFaculty:
			prefs.Faculty[row.SubmitterID] = row.Preference()
		case scheduler.SubmitterStudent:
			prefs.Student[row.SubmitterID] = row.Preference()
		}
	}
	return prefs
}
