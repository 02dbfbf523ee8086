package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// CurrentTimetableID identifies the single working timetable.
const CurrentTimetableID = "current"

// ErrTimetableFinalized is returned by writes that would change a finalized timetable.
var ErrTimetableFinalized = errors.New("timetable is finalized")

// TimetableRepository persists the current timetable and its entries.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a new instance of TimetableRepository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// GetCurrent loads the timetable header and its entries in committed order.
// It returns sql.ErrNoRows when nothing has been generated or imported yet.
func (r *TimetableRepository) GetCurrent(ctx context.Context) (*models.Timetable, error) {
	const headerQuery = `SELECT id, finalized, approved, warnings, generated_at, updated_at FROM timetables WHERE id = $1`
	var record models.TimetableRecord
	if err := r.db.GetContext(ctx, &record, headerQuery, CurrentTimetableID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get timetable: %w", err)
	}

	const entriesQuery = `SELECT id, timetable_id, position, subject, day, time_slot, teacher, room FROM timetable_entries WHERE timetable_id = $1 ORDER BY position ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, entriesQuery, record.ID); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}

	warnings := []string{}
	if len(record.Warnings) > 0 {
		if err := json.Unmarshal(record.Warnings, &warnings); err != nil {
			return nil, fmt.Errorf("decode timetable warnings: %w", err)
		}
	}
	if entries == nil {
		entries = []models.TimetableEntry{}
	}

	return &models.Timetable{
		ID:          record.ID,
		Entries:     entries,
		Warnings:    warnings,
		Finalized:   record.Finalized,
		Approved:    record.Approved,
		GeneratedAt: record.GeneratedAt,
		UpdatedAt:   record.UpdatedAt,
	}, nil
}

// Replace swaps every entry of the current timetable in one transaction and resets the
// finalized and approved flags. A nil generatedAt keeps the previous generation time.
// It returns ErrTimetableFinalized when the timetable was finalized before the write landed.
func (r *TimetableRepository) Replace(ctx context.Context, entries []models.TimetableEntry, warnings []string, generatedAt *time.Time) (err error) {
	if warnings == nil {
		warnings = []string{}
	}
	encoded, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("encode timetable warnings: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace timetable: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockEditable(ctx, tx); err != nil {
		return err
	}

	now := time.Now().UTC()
	const headerQuery = `
INSERT INTO timetables (id, finalized, approved, warnings, generated_at, updated_at)
VALUES ($1, FALSE, FALSE, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET finalized = FALSE,
    approved = FALSE,
    warnings = EXCLUDED.warnings,
    generated_at = COALESCE(EXCLUDED.generated_at, timetables.generated_at),
    updated_at = EXCLUDED.updated_at
WHERE NOT timetables.finalized`
	res, err := tx.ExecContext(ctx, headerQuery, CurrentTimetableID, string(encoded), generatedAt, now)
	if err != nil {
		return fmt.Errorf("upsert timetable header: %w", err)
	}
	if err = expectAffected(res, "upsert timetable header"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrTimetableFinalized
		}
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM timetable_entries WHERE timetable_id = $1`, CurrentTimetableID); err != nil {
		return fmt.Errorf("delete timetable entries: %w", err)
	}

	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.TimetableID = CurrentTimetableID
		entry.Position = i
		if err = insertEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace timetable: %w", err)
	}
	return nil
}

// SetFlags stores the finalized and approved workflow flags.
func (r *TimetableRepository) SetFlags(ctx context.Context, finalized, approved bool) error {
	const query = `
INSERT INTO timetables (id, finalized, approved, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET finalized = EXCLUDED.finalized,
    approved = EXCLUDED.approved,
    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, CurrentTimetableID, finalized, approved, time.Now().UTC()); err != nil {
		return fmt.Errorf("set timetable flags: %w", err)
	}
	return nil
}

// AddEntry appends an entry after the last existing position.
func (r *TimetableRepository) AddEntry(ctx context.Context, entry *models.TimetableEntry) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add timetable entry: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockEditable(ctx, tx); err != nil {
		return err
	}

	const touchQuery = `
INSERT INTO timetables (id, updated_at) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at`
	if _, err = tx.ExecContext(ctx, touchQuery, CurrentTimetableID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch timetable: %w", err)
	}

	const positionQuery = `SELECT COALESCE(MAX(position) + 1, 0) FROM timetable_entries WHERE timetable_id = $1`
	if err = tx.GetContext(ctx, &entry.Position, positionQuery, CurrentTimetableID); err != nil {
		return fmt.Errorf("next timetable position: %w", err)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.TimetableID = CurrentTimetableID
	if err = insertEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit add timetable entry: %w", err)
	}
	return nil
}

// UpdateEntry overwrites the placement of an existing entry.
func (r *TimetableRepository) UpdateEntry(ctx context.Context, entry *models.TimetableEntry) error {
	const query = `UPDATE timetable_entries SET subject = $2, day = $3, time_slot = $4, teacher = $5, room = $6 WHERE id = $1 AND timetable_id = $7`
	return r.editEntry(ctx, "update timetable entry", query, entry.ID, entry.Subject, entry.Day, entry.TimeSlot, entry.Teacher, entry.Room, CurrentTimetableID)
}

// DeleteEntry removes one entry.
func (r *TimetableRepository) DeleteEntry(ctx context.Context, id string) error {
	const query = `DELETE FROM timetable_entries WHERE id = $1 AND timetable_id = $2`
	return r.editEntry(ctx, "delete timetable entry", query, id, CurrentTimetableID)
}

func (r *TimetableRepository) editEntry(ctx context.Context, op, query string, args ...interface{}) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockEditable(ctx, tx); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = expectAffected(res, op); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	return nil
}

// lockEditable row-locks the timetable header for the rest of tx so a concurrent finalize
// waits, and refuses the write when the timetable is already finalized. A timetable that
// does not exist yet is editable.
func lockEditable(ctx context.Context, tx *sqlx.Tx) error {
	var finalized bool
	err := tx.GetContext(ctx, &finalized, `SELECT finalized FROM timetables WHERE id = $1 FOR UPDATE`, CurrentTimetableID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lock timetable: %w", err)
	}
	if finalized {
		return ErrTimetableFinalized
	}
	return nil
}

func insertEntry(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	const query = `
INSERT INTO timetable_entries (id, timetable_id, position, subject, day, time_slot, teacher, room)
VALUES (:id, :timetable_id, :position, :subject, :day, :time_slot, :teacher, :room)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, entry); err != nil {
		return fmt.Errorf("insert timetable entry: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
