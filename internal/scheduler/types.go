package scheduler

import "time"

// SubmitterType distinguishes who filed a preference.
type SubmitterType string

const (
	SubmitterFaculty SubmitterType = "faculty"
	SubmitterStudent SubmitterType = "student"
)

// Weekdays is the fixed ordered list of teaching days.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// TimeSlots is the fixed ordered list of one-hour slot labels.
var TimeSlots = []string{
	"9:00 AM", "10:00 AM", "11:00 AM", "12:00 PM",
	"1:00 PM", "2:00 PM", "3:00 PM", "4:00 PM",
}

// Preference is a single submission by a faculty member or a student.
type Preference struct {
	Subject       string        `json:"subject"`
	Day           string        `json:"day"`
	Time          string        `json:"time"`
	Teacher       string        `json:"teacher,omitempty"`
	Room          string        `json:"room,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
	SubmitterType SubmitterType `json:"type"`
}

// Preferences groups submissions by submitter id.
type Preferences struct {
	Faculty map[string]Preference `json:"faculty"`
	Student map[string]Preference `json:"student"`
}

// Entry is one committed subject assignment.
type Entry struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Day     string `json:"day"`
	Time    string `json:"time"`
	Teacher string `json:"teacher"`
	Room    string `json:"room"`
}

// Result is the output of a generation run.
type Result struct {
	Entries  []Entry  `json:"entries"`
	Warnings []string `json:"warnings"`
}

// Tier ranks how well a candidate matches submitted preferences.
type Tier int

const (
	TierOpenSlot Tier = 1
	TierStudent  Tier = 2
	TierFaculty  Tier = 3
)

// String returns the tier label used in logs.
func (t Tier) String() string {
	switch t {
	case TierFaculty:
		return "faculty"
	case TierStudent:
		return "student"
	case TierOpenSlot:
		return "open"
	default:
		return "unknown"
	}
}

// Candidate is an unconfirmed placement considered for one subject.
type Candidate struct {
	Day     string
	Time    string
	Teacher string
	Room    string
	Tier    Tier
}
