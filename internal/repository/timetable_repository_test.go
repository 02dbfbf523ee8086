package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const lockEditableQuery = "SELECT finalized FROM timetables WHERE id = $1 FOR UPDATE"

func expectLockEditable(mock sqlmock.Sqlmock, finalized ...bool) {
	rows := sqlmock.NewRows([]string{"finalized"})
	for _, f := range finalized {
		rows.AddRow(f)
	}
	mock.ExpectQuery(regexp.QuoteMeta(lockEditableQuery)).WithArgs(CurrentTimetableID).WillReturnRows(rows)
}

func TestTimetableRepositoryGetCurrent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	generated := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, finalized, approved, warnings, generated_at, updated_at FROM timetables WHERE id = $1")).
		WithArgs(CurrentTimetableID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "finalized", "approved", "warnings", "generated_at", "updated_at"}).
			AddRow(CurrentTimetableID, true, false, []byte(`["Could not find slot for subject: Art"]`), generated, generated))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, timetable_id, position, subject, day, time_slot, teacher, room FROM timetable_entries WHERE timetable_id = $1 ORDER BY position ASC")).
		WithArgs(CurrentTimetableID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timetable_id", "position", "subject", "day", "time_slot", "teacher", "room"}).
			AddRow("e1", CurrentTimetableID, 0, "Math", "Monday", "9:00 AM", "Smith", "101"))

	tt, err := repo.GetCurrent(context.Background())
	require.NoError(t, err)
	assert.True(t, tt.Finalized)
	assert.Equal(t, []string{"Could not find slot for subject: Art"}, tt.Warnings)
	require.Len(t, tt.Entries, 1)
	assert.Equal(t, "9:00 AM", tt.Entries[0].TimeSlot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryGetCurrentMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetables WHERE id = $1")).
		WithArgs(CurrentTimetableID).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetCurrent(context.Background())
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestTimetableRepositoryReplace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	generated := time.Now().UTC()
	mock.ExpectBegin()
	expectLockEditable(mock, false)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetables (id, finalized, approved, warnings, generated_at, updated_at)")).
		WithArgs(CurrentTimetableID, `["Could not find slot for subject: Art"]`, generated, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries WHERE timetable_id = $1")).
		WithArgs(CurrentTimetableID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_entries")).
		WithArgs("e1", CurrentTimetableID, 0, "Math", "Monday", "9:00 AM", "Smith", "101").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_entries")).
		WithArgs(sqlmock.AnyArg(), CurrentTimetableID, 1, "Physics", "Monday", "10:00 AM", "Jones", "102").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entries := []models.TimetableEntry{
		{ID: "e1", Subject: "Math", Day: "Monday", TimeSlot: "9:00 AM", Teacher: "Smith", Room: "101"},
		{Subject: "Physics", Day: "Monday", TimeSlot: "10:00 AM", Teacher: "Jones", Room: "102"},
	}
	require.NoError(t, repo.Replace(context.Background(), entries, []string{"Could not find slot for subject: Art"}, &generated))
	assert.NotEmpty(t, entries[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryReplaceRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	expectLockEditable(mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetables")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries")).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), nil, nil, nil)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryReplaceRefusesFinalized(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	expectLockEditable(mock, true)
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), []models.TimetableEntry{{Subject: "Math", Day: "Monday", TimeSlot: "9:00 AM"}}, nil, nil)
	assert.ErrorIs(t, err, ErrTimetableFinalized)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryReplaceSkipsHeaderFinalizedConcurrently(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	expectLockEditable(mock)
	mock.ExpectExec(regexp.QuoteMeta("WHERE NOT timetables.finalized")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrTimetableFinalized)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositorySetFlags(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetables (id, finalized, approved, updated_at)")).
		WithArgs(CurrentTimetableID, true, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetFlags(context.Background(), true, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryAddEntry(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	expectLockEditable(mock, false)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetables (id, updated_at)")).
		WithArgs(CurrentTimetableID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(position) + 1, 0) FROM timetable_entries WHERE timetable_id = $1")).
		WithArgs(CurrentTimetableID).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_entries")).
		WithArgs(sqlmock.AnyArg(), CurrentTimetableID, 4, "Chemistry", "Tuesday", "1:00 PM", "Lee", "Lab").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry := &models.TimetableEntry{Subject: "Chemistry", Day: "Tuesday", TimeSlot: "1:00 PM", Teacher: "Lee", Room: "Lab"}
	require.NoError(t, repo.AddEntry(context.Background(), entry))
	assert.Equal(t, 4, entry.Position)
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryUpdateAndDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	expectLockEditable(mock, false)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_entries SET subject = $2")).
		WithArgs("missing", "Math", "Monday", "9:00 AM", "Smith", "", CurrentTimetableID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectBegin()
	expectLockEditable(mock, false)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries WHERE id = $1 AND timetable_id = $2")).
		WithArgs("e1", CurrentTimetableID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateEntry(context.Background(), &models.TimetableEntry{ID: "missing", Subject: "Math", Day: "Monday", TimeSlot: "9:00 AM", Teacher: "Smith"})
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, repo.DeleteEntry(context.Background(), "e1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryEditsRefusedWhenFinalized(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	expectLockEditable(mock, true)
	mock.ExpectRollback()
	mock.ExpectBegin()
	expectLockEditable(mock, true)
	mock.ExpectRollback()

	err := repo.AddEntry(context.Background(), &models.TimetableEntry{Subject: "Art", Day: "Friday", TimeSlot: "4:00 PM"})
	assert.ErrorIs(t, err, ErrTimetableFinalized)
	assert.ErrorIs(t, repo.DeleteEntry(context.Background(), "e1"), ErrTimetableFinalized)
	assert.NoError(t, mock.ExpectationsWereMet())
}
