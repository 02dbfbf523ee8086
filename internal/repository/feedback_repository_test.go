package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestFeedbackRepositoryCreateDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeedbackRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO feedback_entries")).
		WithArgs(sqlmock.AnyArg(), "s1", "Student One", "issue", "Two exams on Monday", "new", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	f := &models.Feedback{UserID: "s1", UserName: "Student One", Type: "issue", Message: "Two exams on Monday"}
	require.NoError(t, repo.Create(context.Background(), f))
	assert.Equal(t, models.FeedbackStatusNew, f.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackRepositoryListAndClear(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeedbackRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, user_name, type, message, status, created_at FROM feedback_entries ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "user_name", "type", "message", "status", "created_at"}).
			AddRow("f1", "s1", "Student One", "approve", "Looks good", "new", time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM feedback_entries")).WillReturnResult(sqlmock.NewResult(0, 1))

	items, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)

	n, err := repo.Clear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
