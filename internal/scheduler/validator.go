package scheduler

import "fmt"

// Validate reports every teacher and room double-booking among entries.
func Validate(entries []Entry) []string {
	conflicts := make([]string, 0)
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i], entries[j]
			if a.Day != b.Day || a.Time != b.Time {
				continue
			}
			if a.Teacher == b.Teacher {
				conflicts = append(conflicts, fmt.Sprintf("Teacher conflict: %s has two classes at %s on %s", a.Teacher, a.Time, a.Day))
			}
			if a.Room == b.Room {
				conflicts = append(conflicts, fmt.Sprintf("Room conflict: Room %s has two classes at %s on %s", a.Room, a.Time, a.Day))
			}
		}
	}
	return conflicts
}

// SlotAvailable reports whether no entry occupies the teacher or the room at day/time.
func SlotAvailable(entries []Entry, day, time, teacher, room string) bool {
	for _, entry := range entries {
		if entry.Day == day && entry.Time == time && (entry.Teacher == teacher || entry.Room == room) {
			return false
		}
	}
	return true
}
