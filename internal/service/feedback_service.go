package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type feedbackStore interface {
	Create(ctx context.Context, f *models.Feedback) error
	List(ctx context.Context) ([]models.Feedback, error)
	Clear(ctx context.Context) (int64, error)
}

// FeedbackAuthor identifies who is submitting feedback.
type FeedbackAuthor struct {
	ID   string
	Name string
}

// FeedbackService collects user feedback and routes it to the administrator.
type FeedbackService struct {
	repo      feedbackStore
	notifier  notifier
	adminID   string
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeedbackService constructs a FeedbackService. adminID receives a notification per submission.
func NewFeedbackService(repo feedbackStore, notify notifier, adminID string, validate *validator.Validate, logger *zap.Logger) *FeedbackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notify == nil {
		notify = noopNotifier{}
	}
	return &FeedbackService{repo: repo, notifier: notify, adminID: adminID, validator: validate, logger: logger}
}

// Submit stores a feedback message and alerts the administrator.
func (s *FeedbackService) Submit(ctx context.Context, author FeedbackAuthor, req dto.SubmitFeedbackRequest) (*models.Feedback, error) {
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}

	item := &models.Feedback{
		UserID:   author.ID,
		UserName: author.Name,
		Type:     req.Type,
		Message:  req.Message,
		Status:   models.FeedbackStatusNew,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save feedback")
	}

	from := author.Name
	if from == "" {
		from = author.ID
	}
	if s.adminID != "" {
		s.notifier.Notify(ctx, s.adminID, models.NotificationInfo, "New User Feedback Received", fmt.Sprintf("From: %s. Type: %s", from, req.Type))
	}
	return item, nil
}

// List returns all feedback, newest first.
func (s *FeedbackService) List(ctx context.Context) ([]models.Feedback, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	if items == nil {
		items = []models.Feedback{}
	}
	return items, nil
}

// Clear deletes every feedback entry and tells the actor how it went.
func (s *FeedbackService) Clear(ctx context.Context, actorID string) (int64, error) {
	removed, err := s.repo.Clear(ctx)
	if err != nil {
		s.notifier.Notify(ctx, actorID, models.NotificationError, "Clear Feedback Error", "Failed to clear feedback.")
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear feedback")
	}
	if removed == 0 {
		s.notifier.Notify(ctx, actorID, models.NotificationInfo, "Feedback Cleared", "There was no feedback to clear.")
		return 0, nil
	}
	s.logger.Info("feedback cleared", zap.Int64("removed", removed))
	s.notifier.Notify(ctx, actorID, models.NotificationSuccess, "Feedback Cleared", "All user feedback has been cleared.")
	return removed, nil
}
