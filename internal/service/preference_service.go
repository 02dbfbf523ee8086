package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type preferenceStore interface {
	Upsert(ctx context.Context, pref *models.StoredPreference) error
	List(ctx context.Context) ([]models.StoredPreference, error)
	Clear(ctx context.Context) (int64, error)
}

type notifier interface {
	Notify(ctx context.Context, recipientID string, kind models.NotificationType, title, message string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, models.NotificationType, string, string) {}

// Grid lists the day and slot labels accepted by the service.
type Grid struct {
	Days  []string
	Slots []string
}

func (g Grid) withDefaults() Grid {
	if len(g.Days) == 0 {
		g.Days = scheduler.Weekdays
	}
	if len(g.Slots) == 0 {
		g.Slots = scheduler.TimeSlots
	}
	return g
}

func (g Grid) check(day, slot string) error {
	if !containsLabel(g.Days, day) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("day must be one of %s", strings.Join(g.Days, ", ")))
	}
	if !containsLabel(g.Slots, slot) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("time must be one of %s", strings.Join(g.Slots, ", ")))
	}
	return nil
}

func containsLabel(labels []string, target string) bool {
	for _, l := range labels {
		if l == target {
			return true
		}
	}
	return false
}

// PreferenceService manages faculty and student slot preferences.
type PreferenceService struct {
	repo      preferenceStore
	notifier  notifier
	grid      Grid
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPreferenceService constructs a PreferenceService.
func NewPreferenceService(repo preferenceStore, notify notifier, grid Grid, validate *validator.Validate, logger *zap.Logger) *PreferenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notify == nil {
		notify = noopNotifier{}
	}
	return &PreferenceService{
		repo:      repo,
		notifier:  notify,
		grid:      grid.withDefaults(),
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit stores the submitter's preference, replacing any earlier one of the same type.
func (s *PreferenceService) Submit(ctx context.Context, kind scheduler.SubmitterType, submitterID string, req dto.SubmitPreferenceRequest) (*models.StoredPreference, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Teacher = strings.TrimSpace(req.Teacher)
	req.Room = strings.TrimSpace(req.Room)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preference payload")
	}
	if submitterID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "submitter is required")
	}
	if kind != scheduler.SubmitterFaculty && kind != scheduler.SubmitterStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown submitter type")
	}
	if kind == scheduler.SubmitterFaculty && req.Teacher == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher is required for faculty preferences")
	}
	if err := s.grid.check(req.Day, req.Time); err != nil {
		return nil, err
	}

	pref := &models.StoredPreference{
		SubmitterType: kind,
		SubmitterID:   submitterID,
		Subject:       req.Subject,
		Day:           req.Day,
		TimeSlot:      req.Time,
		Teacher:       req.Teacher,
		Room:          req.Room,
		SubmittedAt:   s.now(),
	}
	if err := s.repo.Upsert(ctx, pref); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save preference")
	}

	title := "Student Preference Saved"
	if kind == scheduler.SubmitterFaculty {
		title = "Faculty Preference Saved"
	}
	s.notifier.Notify(ctx, submitterID, models.NotificationSuccess, title, fmt.Sprintf("Preference for %s has been saved.", pref.Subject))
	s.logger.Debug("preference saved", zap.String("type", string(kind)), zap.String("submitter", submitterID), zap.String("subject", pref.Subject))
	return pref, nil
}

// All returns the stored preferences grouped the way the generator consumes them.
func (s *PreferenceService) All(ctx context.Context) (scheduler.Preferences, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return scheduler.Preferences{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}
	return models.GroupPreferences(rows), nil
}

// Clear removes every preference and reports how many were deleted.
func (s *PreferenceService) Clear(ctx context.Context) (int64, error) {
	n, err := s.repo.Clear(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear preferences")
	}
	s.logger.Info("preferences cleared", zap.Int64("count", n))
	return n, nil
}
