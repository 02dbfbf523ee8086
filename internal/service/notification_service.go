package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/mailer"
)

const notificationJobType = "notification.deliver"

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
	Delete(ctx context.Context, id, recipientID string) error
}

type recipientLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// NotificationDelivery is the queue payload. Stored survives retries so a failed email
// does not insert the notification twice.
type NotificationDelivery struct {
	Notification models.Notification
	Stored       bool
}

// NotificationService records in-app notifications through the delivery queue.
type NotificationService struct {
	store  notificationStore
	queue  jobDispatcher
	logger *zap.Logger
}

// NewNotificationService constructs a notification service. A nil queue stores synchronously.
func NewNotificationService(store notificationStore, queue jobDispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{store: store, queue: queue, logger: logger}
}

// Notify schedules a notification for recipientID. Delivery errors are logged, not returned,
// so the triggering operation is never rolled back by a notification failure.
func (s *NotificationService) Notify(ctx context.Context, recipientID string, kind models.NotificationType, title, message string) {
	if s == nil {
		return
	}
	if strings.TrimSpace(recipientID) == "" {
		recipientID = "system"
	}
	if kind == "" {
		kind = models.NotificationInfo
	}
	if strings.TrimSpace(title) == "" {
		title = "Notification"
	}
	n := models.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Type:        kind,
		Title:       title,
		Message:     message,
	}

	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{ID: n.ID, Type: notificationJobType, Payload: &NotificationDelivery{Notification: n}})
		if err == nil {
			return
		}
		s.logger.Warn("failed to enqueue notification, storing inline", zap.String("recipient", recipientID), zap.Error(err))
	}
	if err := s.store.Create(ctx, &n); err != nil {
		s.logger.Error("failed to store notification", zap.String("recipient", recipientID), zap.Error(err))
	}
}

// List returns the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, recipientID string) ([]models.Notification, error) {
	items, err := s.store.ListByRecipient(ctx, recipientID, 50)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, nil
}

// Dismiss deletes one of the recipient's notifications.
func (s *NotificationService) Dismiss(ctx context.Context, id, recipientID string) error {
	if err := s.store.Delete(ctx, id, recipientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to dismiss notification")
	}
	return nil
}

// NotificationWorker bridges queue jobs to the notification store and the optional mail channel.
type NotificationWorker struct {
	store   notificationStore
	users   recipientLookup
	mail    mailer.Mailer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationWorker constructs the worker. users and mail may be nil to disable email copies.
func NewNotificationWorker(store notificationStore, users recipientLookup, mail mailer.Mailer, metrics *MetricsService, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{store: store, users: users, mail: mail, metrics: metrics, logger: logger}
}

// Handle processes a queue job.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	delivery, ok := job.Payload.(*NotificationDelivery)
	if !ok || delivery == nil {
		w.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}

	if !delivery.Stored {
		if err := w.store.Create(ctx, &delivery.Notification); err != nil {
			return fmt.Errorf("store notification: %w", err)
		}
		delivery.Stored = true
	}

	if w.mail == nil || w.users == nil {
		return nil
	}
	user, err := w.users.FindByID(ctx, delivery.Notification.RecipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("lookup notification recipient: %w", err)
	}
	if user.Email == "" || !user.Active {
		return nil
	}
	return w.mail.Send(ctx, mailer.Message{
		ToName:    user.FullName,
		ToAddress: user.Email,
		Subject:   delivery.Notification.Title,
		Body:      delivery.Notification.Message,
	})
}

// Failed is the queue's failure hook.
func (w *NotificationWorker) Failed(job jobs.Job, err error) {
	w.metrics.RecordNotificationFailure()
	w.logger.Error("notification dropped", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
}
