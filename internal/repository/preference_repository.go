package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// PreferenceRepository stores one preference per submitter and type.
type PreferenceRepository struct {
	db *sqlx.DB
}

// NewPreferenceRepository creates a new instance of PreferenceRepository.
func NewPreferenceRepository(db *sqlx.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Upsert inserts the preference or overwrites the submitter's previous one.
func (r *PreferenceRepository) Upsert(ctx context.Context, pref *models.StoredPreference) error {
	if pref.SubmittedAt.IsZero() {
		pref.SubmittedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO preferences (submitter_type, submitter_id, subject, day, time_slot, teacher, room, submitted_at)
VALUES (:submitter_type, :submitter_id, :subject, :day, :time_slot, :teacher, :room, :submitted_at)
ON CONFLICT (submitter_type, submitter_id) DO UPDATE
SET subject = EXCLUDED.subject,
    day = EXCLUDED.day,
    time_slot = EXCLUDED.time_slot,
    teacher = EXCLUDED.teacher,
    room = EXCLUDED.room,
    submitted_at = EXCLUDED.submitted_at`
	if _, err := r.db.NamedExecContext(ctx, query, pref); err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

// List returns every stored preference ordered by type and submitter.
func (r *PreferenceRepository) List(ctx context.Context) ([]models.StoredPreference, error) {
	const query = `SELECT submitter_type, submitter_id, subject, day, time_slot, teacher, room, submitted_at FROM preferences ORDER BY submitter_type ASC, submitter_id ASC`
	var prefs []models.StoredPreference
	if err := r.db.SelectContext(ctx, &prefs, query); err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return prefs, nil
}

// Clear removes all preferences of both types.
func (r *PreferenceRepository) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM preferences`)
	if err != nil {
		return 0, fmt.Errorf("clear preferences: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear preferences rows affected: %w", err)
	}
	return affected, nil
}
