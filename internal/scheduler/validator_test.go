package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateReportsTeacherAndRoomConflicts(t *testing.T) {
	entries := []Entry{
		{ID: "1", Subject: "Math", Day: "Monday", Time: "9:00 AM", Teacher: "Dr. A", Room: "R1"},
		{ID: "2", Subject: "Physics", Day: "Monday", Time: "9:00 AM", Teacher: "Dr. A", Room: "R1"},
	}

	assert.Equal(t, []string{
		"Teacher conflict: Dr. A has two classes at 9:00 AM on Monday",
		"Room conflict: Room R1 has two classes at 9:00 AM on Monday",
	}, Validate(entries))
}

func TestValidateChecksEveryPair(t *testing.T) {
	entries := []Entry{
		{ID: "1", Subject: "Math", Day: "Monday", Time: "9:00 AM", Teacher: "Dr. A", Room: "R1"},
		{ID: "2", Subject: "Physics", Day: "Monday", Time: "9:00 AM", Teacher: "Dr. B", Room: "R1"},
		{ID: "3", Subject: "Art", Day: "Monday", Time: "9:00 AM", Teacher: "Dr. A", Room: "R3"},
		{ID: "4", Subject: "Music", Day: "Tuesday", Time: "9:00 AM", Teacher: "Dr. A", Room: "R1"},
	}

	assert.Equal(t, []string{
		"Room conflict: Room R1 has two classes at 9:00 AM on Monday",
		"Teacher conflict: Dr. A has two classes at 9:00 AM on Monday",
	}, Validate(entries))
}

func TestValidateCleanTimetable(t *testing.T) {
	entries := []Entry{
		{ID: "1", Subject: "Math", Day: "Monday", Time: "9:00 AM", Teacher: "Dr. A", Room: "R1"},
		{ID: "2", Subject: "Physics", Day: "Monday", Time: "10:00 AM", Teacher: "Dr. A", Room: "R1"},
	}

	assert.Empty(t, Validate(entries))
	assert.Empty(t, Validate(nil))
}

func TestSlotAvailable(t *testing.T) {
	entries := []Entry{{ID: "1", Subject: "Math", Day: "Monday", Time: "9:00 AM", Teacher: "Dr. A", Room: "R1"}}

	assert.False(t, SlotAvailable(entries, "Monday", "9:00 AM", "Dr. A", "R2"))
	assert.False(t, SlotAvailable(entries, "Monday", "9:00 AM", "Dr. B", "R1"))
	assert.True(t, SlotAvailable(entries, "Monday", "9:00 AM", "Dr. B", "R2"))
	assert.True(t, SlotAvailable(entries, "Monday", "10:00 AM", "Dr. A", "R1"))
}
