package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// FeedbackRepository stores user feedback.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository creates a new instance of FeedbackRepository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create persists a feedback entry.
func (r *FeedbackRepository) Create(ctx context.Context, f *models.Feedback) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if f.Status == "" {
		f.Status = models.FeedbackStatusNew
	}
	const query = `
INSERT INTO feedback_entries (id, user_id, user_name, type, message, status, created_at)
VALUES (:id, :user_id, :user_name, :type, :message, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, f); err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

// List returns feedback newest first.
func (r *FeedbackRepository) List(ctx context.Context) ([]models.Feedback, error) {
	const query = `SELECT id, user_id, user_name, type, message, status, created_at FROM feedback_entries ORDER BY created_at DESC`
	var items []models.Feedback
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return items, nil
}

// Clear removes all feedback and reports how many rows were deleted.
func (r *FeedbackRepository) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM feedback_entries`)
	if err != nil {
		return 0, fmt.Errorf("clear feedback: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear feedback rows affected: %w", err)
	}
	return affected, nil
}
