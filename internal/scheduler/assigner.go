package scheduler

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Assigner greedily places subjects into a running timetable.
type Assigner struct {
	days   []string
	slots  []string
	ids    IDGenerator
	logger *zap.Logger
}

// NewAssigner builds an assigner over the given weekly grid.
func NewAssigner(days, slots []string, ids IDGenerator, logger *zap.Logger) *Assigner {
	if len(days) == 0 {
		days = Weekdays
	}
	if len(slots) == 0 {
		slots = TimeSlots
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assigner{days: days, slots: slots, ids: ids, logger: logger}
}

// Assign schedules subjects in the given order on top of timetable and returns the grown
// timetable plus one warning per subject that could not be placed.
func (a *Assigner) Assign(order []string, prefs Preferences, timetable []Entry) ([]Entry, []string) {
	entries := make([]Entry, len(timetable), len(timetable)+len(order))
	copy(entries, timetable)
	warnings := make([]string, 0)

	for _, subject := range order {
		candidates := a.Candidates(entries, prefs, subject)
		if len(candidates) == 0 {
			warning := fmt.Sprintf("Could not find slot for subject: %s", subject)
			a.logger.Warn("subject unschedulable", zap.String("subject", subject))
			warnings = append(warnings, warning)
			continue
		}
		best := Best(candidates)
		entries = append(entries, Entry{
			ID:      a.ids.NewID(),
			Subject: subject,
			Day:     best.Day,
			Time:    best.Time,
			Teacher: best.Teacher,
			Room:    best.Room,
		})
		a.logger.Debug("subject placed",
			zap.String("subject", subject),
			zap.String("day", best.Day),
			zap.String("time", best.Time),
			zap.Stringer("tier", best.Tier),
		)
	}
	return entries, warnings
}

// Candidates lists every free placement for subject, faculty matches first, then student
// matches, then the open grid using the first faculty preference's teacher and room.
func (a *Assigner) Candidates(entries []Entry, prefs Preferences, subject string) []Candidate {
	var candidates []Candidate
	faculty := preferencesFor(prefs.Faculty, subject)
	for _, pref := range faculty {
		if SlotAvailable(entries, pref.Day, pref.Time, pref.Teacher, pref.Room) {
			candidates = append(candidates, candidateFrom(pref, TierFaculty))
		}
	}
	for _, pref := range preferencesFor(prefs.Student, subject) {
		if SlotAvailable(entries, pref.Day, pref.Time, pref.Teacher, pref.Room) {
			candidates = append(candidates, candidateFrom(pref, TierStudent))
		}
	}

	// Open slots fall back to a single teacher/room pairing, empty when no faculty preference exists.
	var teacher, room string
	if len(faculty) > 0 {
		teacher, room = faculty[0].Teacher, faculty[0].Room
	}
	for _, day := range a.days {
		for _, slot := range a.slots {
			if SlotAvailable(entries, day, slot, teacher, room) {
				candidates = append(candidates, Candidate{Day: day, Time: slot, Teacher: teacher, Room: room, Tier: TierOpenSlot})
			}
		}
	}
	return candidates
}

// Best returns the highest tier candidate, earliest first among equals.
func Best(candidates []Candidate) Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Tier > ranked[j].Tier
	})
	return ranked[0]
}

func candidateFrom(pref Preference, tier Tier) Candidate {
	return Candidate{Day: pref.Day, Time: pref.Time, Teacher: pref.Teacher, Room: pref.Room, Tier: tier}
}
