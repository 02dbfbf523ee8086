package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const generationLockKey = "lock:timetable:generate"

type timetableStore interface {
	GetCurrent(ctx context.Context) (*models.Timetable, error)
	Replace(ctx context.Context, entries []models.TimetableEntry, warnings []string, generatedAt *time.Time) error
	SetFlags(ctx context.Context, finalized, approved bool) error
	AddEntry(ctx context.Context, entry *models.TimetableEntry) error
	UpdateEntry(ctx context.Context, entry *models.TimetableEntry) error
	DeleteEntry(ctx context.Context, id string) error
}

type preferenceSource interface {
	All(ctx context.Context) (scheduler.Preferences, error)
}

type generationLock interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

type timetableCache interface {
	Timetable(ctx context.Context) *models.Timetable
	Epoch() uint64
	StoreTimetable(ctx context.Context, tt *models.Timetable, epoch uint64)
	InvalidateTimetable(ctx context.Context)
}

// TimetableConfig governs generation behaviour.
type TimetableConfig struct {
	Grid    Grid
	LockTTL time.Duration
	IDs     scheduler.IDGenerator
}

// TimetableService runs the generator and owns the current timetable's lifecycle.
type TimetableService struct {
	repo      timetableStore
	prefs     preferenceSource
	lock      generationLock
	cache     timetableCache
	notifier  notifier
	metrics   *MetricsService
	engine    *scheduler.Engine
	grid      Grid
	lockTTL   time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewTimetableService wires the timetable dependencies. cache, notify and metrics may be nil.
func NewTimetableService(
	repo timetableStore,
	prefs preferenceSource,
	lock generationLock,
	cache timetableCache,
	notify notifier,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notify == nil {
		notify = noopNotifier{}
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.IDs == nil {
		cfg.IDs = scheduler.UUIDGenerator{}
	}
	grid := cfg.Grid.withDefaults()
	engine := scheduler.New(
		scheduler.WithGrid(grid.Days, grid.Slots),
		scheduler.WithIDGenerator(cfg.IDs),
		scheduler.WithLogger(logger.Named("scheduler")),
	)
	return &TimetableService{
		repo:      repo,
		prefs:     prefs,
		lock:      lock,
		cache:     cache,
		notifier:  notify,
		metrics:   metrics,
		engine:    engine,
		grid:      grid,
		lockTTL:   cfg.LockTTL,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Grid returns the day and slot labels the generator fills.
func (s *TimetableService) Grid() Grid {
	return s.grid
}

// Current returns the current timetable, served from cache when possible. An empty
// timetable is returned before the first generation.
func (s *TimetableService) Current(ctx context.Context) (*models.Timetable, error) {
	if s.cache == nil {
		return s.load(ctx)
	}
	if tt := s.cache.Timetable(ctx); tt != nil {
		return tt, nil
	}
	epoch := s.cache.Epoch()
	tt, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.StoreTimetable(ctx, tt, epoch)
	return tt, nil
}

func (s *TimetableService) load(ctx context.Context) (*models.Timetable, error) {
	tt, err := s.repo.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.Timetable{
				ID:       repository.CurrentTimetableID,
				Entries:  []models.TimetableEntry{},
				Warnings: []string{},
			}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return tt, nil
}

// Generate rebuilds the timetable from preferences. Stored preferences are used unless the
// request carries its own. Generation is refused while the timetable is finalized or while
// another generation holds the lock.
func (s *TimetableService) Generate(ctx context.Context, actorID string, req dto.GenerateTimetableRequest) (*models.GenerationResult, error) {
	start := time.Now()

	current, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if current.Finalized {
		s.metrics.ObserveGeneration("rejected", 0, 0, 0)
		return nil, finalizedError("regenerating")
	}

	token := uuid.NewString()
	acquired, err := s.lock.Acquire(ctx, generationLockKey, token, s.lockTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire generation lock")
	}
	if !acquired {
		s.metrics.ObserveGeneration("rejected", 0, 0, 0)
		return nil, appErrors.ErrGenerationInProgress
	}
	defer func() {
		if err := s.lock.Release(context.Background(), generationLockKey, token); err != nil {
			s.logger.Warn("failed to release generation lock", zap.Error(err))
		}
	}()

	var prefs scheduler.Preferences
	if req.Preferences != nil {
		prefs = *req.Preferences
	} else {
		prefs, err = s.prefs.All(ctx)
		if err != nil {
			return nil, err
		}
	}

	result := s.engine.Generate(prefs)
	rows := make([]models.TimetableEntry, len(result.Entries))
	for i, entry := range result.Entries {
		rows[i] = models.EntryFromScheduler(entry)
		rows[i].TimetableID = repository.CurrentTimetableID
		rows[i].Position = i
	}

	generatedAt := s.now()
	if err := s.repo.Replace(ctx, rows, result.Warnings, &generatedAt); err != nil {
		if errors.Is(err, repository.ErrTimetableFinalized) {
			s.metrics.ObserveGeneration("rejected", time.Since(start), 0, 0)
			return nil, finalizedError("regenerating")
		}
		s.metrics.ObserveGeneration("failed", time.Since(start), 0, 0)
		s.notifier.Notify(ctx, actorID, models.NotificationError, "Timetable Generation Error", "Failed to save the newly generated timetable to the database.")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save generated timetable")
	}
	if s.cache != nil {
		s.cache.InvalidateTimetable(ctx)
	}

	s.metrics.ObserveGeneration("success", time.Since(start), len(rows), len(result.Warnings))
	s.notifier.Notify(ctx, actorID, models.NotificationSuccess, "Timetable Generated", "A new timetable has been successfully generated and saved.")
	s.logger.Info("timetable generated",
		zap.Int("scheduled", len(rows)),
		zap.Int("unscheduled", len(result.Warnings)),
		zap.Int("faculty_preferences", len(prefs.Faculty)),
		zap.Int("student_preferences", len(prefs.Student)),
	)

	return &models.GenerationResult{
		Timetable: &models.Timetable{
			ID:          repository.CurrentTimetableID,
			Entries:     rows,
			Warnings:    result.Warnings,
			GeneratedAt: &generatedAt,
			UpdatedAt:   generatedAt,
		},
		Scheduled: len(rows),
		Warnings:  result.Warnings,
	}, nil
}

// Conflicts runs the validator over the current timetable.
func (s *TimetableService) Conflicts(ctx context.Context) (*models.ConflictReport, error) {
	tt, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.report(tt.SchedulerEntries()), nil
}

func (s *TimetableService) report(entries []scheduler.Entry) *models.ConflictReport {
	conflicts := s.engine.Validate(entries)
	return &models.ConflictReport{Conflicts: conflicts, Valid: len(conflicts) == 0}
}

// AddEntry places a subject by hand.
func (s *TimetableService) AddEntry(ctx context.Context, req dto.TimetableEntryRequest) (*models.TimetableEntry, error) {
	entry, err := s.entryFromRequest(req)
	if err != nil {
		return nil, err
	}
	current, err := s.editable(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkPlacement(current.Entries, entry); err != nil {
		return nil, err
	}
	if err := s.repo.AddEntry(ctx, &entry); err != nil {
		if errors.Is(err, repository.ErrTimetableFinalized) {
			return nil, finalizedError("editing")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add timetable entry")
	}
	s.invalidate(ctx)
	return &entry, nil
}

// UpdateEntry moves or edits an existing entry.
func (s *TimetableService) UpdateEntry(ctx context.Context, id string, req dto.TimetableEntryRequest) (*models.TimetableEntry, error) {
	entry, err := s.entryFromRequest(req)
	if err != nil {
		return nil, err
	}
	current, err := s.editable(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for _, existing := range current.Entries {
		if existing.ID == id {
			found = true
			entry.Position = existing.Position
			break
		}
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
	}
	entry.ID = id
	if err := checkPlacement(current.Entries, entry); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateEntry(ctx, &entry); err != nil {
		if errors.Is(err, repository.ErrTimetableFinalized) {
			return nil, finalizedError("editing")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable entry")
	}
	s.invalidate(ctx)
	return &entry, nil
}

// DeleteEntry removes an entry.
func (s *TimetableService) DeleteEntry(ctx context.Context, id string) error {
	if _, err := s.editable(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteEntry(ctx, id); err != nil {
		if errors.Is(err, repository.ErrTimetableFinalized) {
			return finalizedError("editing")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable entry")
	}
	s.invalidate(ctx)
	return nil
}

// Import replaces every entry with the supplied list and reports any conflicts it contains.
func (s *TimetableService) Import(ctx context.Context, actorID string, req dto.ImportTimetableRequest) (*models.ConflictReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import payload")
	}
	if _, err := s.editable(ctx); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(req.Entries))
	rows := make([]models.TimetableEntry, 0, len(req.Entries))
	entries := make([]scheduler.Entry, 0, len(req.Entries))
	for i, item := range req.Entries {
		entry, err := s.importedEntry(item)
		if err != nil {
			return nil, appErrors.Clone(appErrors.FromError(err), fmt.Sprintf("entry %d: %s", i+1, appErrors.FromError(err).Message))
		}
		if _, dup := seen[entry.Subject]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("entry %d: subject %s appears more than once", i+1, entry.Subject))
		}
		seen[entry.Subject] = struct{}{}
		rows = append(rows, entry)
		entries = append(entries, entry.Entry())
	}

	if err := s.repo.Replace(ctx, rows, nil, nil); err != nil {
		if errors.Is(err, repository.ErrTimetableFinalized) {
			return nil, finalizedError("importing")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import timetable")
	}
	s.invalidate(ctx)
	s.notifier.Notify(ctx, actorID, models.NotificationInfo, "Timetable Imported", fmt.Sprintf("%d entries were imported.", len(rows)))
	return s.report(entries), nil
}

// SetFinalized locks or unlocks the timetable. Unfinalizing also withdraws approval.
func (s *TimetableService) SetFinalized(ctx context.Context, actorID string, value bool) (*models.Timetable, error) {
	current, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	approved := current.Approved && value
	if err := s.repo.SetFlags(ctx, value, approved); err != nil {
		s.notifier.Notify(ctx, actorID, models.NotificationError, "Error", "Failed to update timetable finalized status.")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update finalized status")
	}
	s.invalidate(ctx)

	title, kind := "Timetable Unfinalized", models.NotificationInfo
	if value {
		title, kind = "Timetable Finalized", models.NotificationSuccess
	}
	s.notifier.Notify(ctx, actorID, kind, title, "The timetable status has been updated.")

	current.Finalized = value
	current.Approved = approved
	return current, nil
}

// SetApproved records approval. Approving requires a finalized timetable.
func (s *TimetableService) SetApproved(ctx context.Context, actorID string, value bool) (*models.Timetable, error) {
	current, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if value && !current.Finalized {
		s.notifier.Notify(ctx, actorID, models.NotificationWarning, "Approval Failed", "Timetable must be finalized before it can be approved.")
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable must be finalized before it can be approved")
	}
	if err := s.repo.SetFlags(ctx, current.Finalized, value); err != nil {
		s.notifier.Notify(ctx, actorID, models.NotificationError, "Error", "Failed to update timetable approval status.")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update approval status")
	}
	s.invalidate(ctx)

	title, kind := "Timetable Unapproved", models.NotificationInfo
	if value {
		title, kind = "Timetable Approved", models.NotificationSuccess
	}
	s.notifier.Notify(ctx, actorID, kind, title, "The timetable approval status has been updated.")

	current.Approved = value
	return current, nil
}

func (s *TimetableService) editable(ctx context.Context) (*models.Timetable, error) {
	current, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if current.Finalized {
		return nil, finalizedError("editing")
	}
	return current, nil
}

// finalizedError is returned both by the early check and when the store refuses a write
// because a finalize committed in the meantime.
func finalizedError(action string) error {
	return appErrors.Clone(appErrors.ErrFinalized, "timetable is finalized; unfinalize it before "+action)
}

func (s *TimetableService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateTimetable(ctx)
	}
}

func (s *TimetableService) entryFromRequest(req dto.TimetableEntryRequest) (models.TimetableEntry, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Teacher = strings.TrimSpace(req.Teacher)
	req.Room = strings.TrimSpace(req.Room)
	if err := s.validator.Struct(req); err != nil {
		return models.TimetableEntry{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "subject, teacher, day and time are required")
	}
	return s.placedEntry(req.Subject, req.Day, req.Time, req.Teacher, req.Room)
}

func (s *TimetableService) importedEntry(req dto.ImportEntryRequest) (models.TimetableEntry, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Teacher = strings.TrimSpace(req.Teacher)
	req.Room = strings.TrimSpace(req.Room)
	if err := s.validator.Struct(req); err != nil {
		return models.TimetableEntry{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "subject, day and time are required")
	}
	return s.placedEntry(req.Subject, req.Day, req.Time, req.Teacher, req.Room)
}

func (s *TimetableService) placedEntry(subject, day, slot, teacher, room string) (models.TimetableEntry, error) {
	if err := s.grid.check(day, slot); err != nil {
		return models.TimetableEntry{}, err
	}
	return models.TimetableEntry{
		TimetableID: repository.CurrentTimetableID,
		Subject:     subject,
		Day:         day,
		TimeSlot:    slot,
		Teacher:     teacher,
		Room:        room,
	}, nil
}

// checkPlacement rejects a subject that is already placed elsewhere and any teacher or room
// double-booking. The entry with candidate's ID is ignored so it can move onto itself.
func checkPlacement(existing []models.TimetableEntry, candidate models.TimetableEntry) error {
	others := make([]scheduler.Entry, 0, len(existing))
	for _, e := range existing {
		if candidate.ID != "" && e.ID == candidate.ID {
			continue
		}
		if e.Subject == candidate.Subject {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("subject %s is already scheduled on %s at %s", e.Subject, e.Day, e.TimeSlot))
		}
		others = append(others, e.Entry())
	}
	if scheduler.SlotAvailable(others, candidate.Day, candidate.TimeSlot, candidate.Teacher, candidate.Room) {
		return nil
	}
	var conflicts []string
	for _, other := range others {
		conflicts = append(conflicts, scheduler.Validate([]scheduler.Entry{other, candidate.Entry()})...)
	}
	return appErrors.Clone(appErrors.ErrConflict, strings.Join(conflicts, "; "))
}
