package dto

import "github.com/noah-isme/sma-timetable-api/internal/scheduler"

// SubmitPreferenceRequest is a faculty or student preference. Teacher is mandatory for faculty.
type SubmitPreferenceRequest struct {
	Subject string `json:"subject" validate:"required,max=120"`
	Day     string `json:"day" validate:"required"`
	Time    string `json:"time" validate:"required"`
	Teacher string `json:"teacher" validate:"omitempty,max=120"`
	Room    string `json:"room" validate:"omitempty,max=60"`
}

// GenerateTimetableRequest optionally carries an explicit preference payload; stored preferences are used otherwise.
type GenerateTimetableRequest struct {
	Preferences *scheduler.Preferences `json:"preferences"`
}

// TimetableEntryRequest describes a manually placed entry.
type TimetableEntryRequest struct {
	Subject string `json:"subject" validate:"required,max=120"`
	Day     string `json:"day" validate:"required"`
	Time    string `json:"time" validate:"required"`
	Teacher string `json:"teacher" validate:"required,max=120"`
	Room    string `json:"room" validate:"omitempty,max=60"`
}

// ImportEntryRequest is one imported row. Teacher may be empty so exported student-only
// subjects can be imported back.
type ImportEntryRequest struct {
	Subject string `json:"subject" validate:"required,max=120"`
	Day     string `json:"day" validate:"required"`
	Time    string `json:"time" validate:"required"`
	Teacher string `json:"teacher" validate:"max=120"`
	Room    string `json:"room" validate:"omitempty,max=60"`
}

// ImportTimetableRequest replaces the current entries wholesale.
type ImportTimetableRequest struct {
	Entries []ImportEntryRequest `json:"entries" validate:"required,dive"`
}

// SubmitFeedbackRequest is a user's reaction to the published timetable.
type SubmitFeedbackRequest struct {
	Type    string `json:"type" validate:"required,oneof=approve issue"`
	Message string `json:"message" validate:"required,max=2000"`
}

// ExportFormat names a supported export encoding.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportPDF  ExportFormat = "pdf"
	ExportJSON ExportFormat = "json"
)
