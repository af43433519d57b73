package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stageflow/stageflow-api/internal/models"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
	"github.com/stageflow/stageflow-api/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
	CountUnread(ctx context.Context, userID string) (int, error)
}

// NotificationService is the notification sink behind the workflow and
// assignment flows. Delivery is fire-and-forget through the in-memory
// queue: persistence failures are logged, never surfaced to callers.
type NotificationService struct {
	repo   notificationStore
	queue  *jobs.Queue
	logger *zap.Logger
}

type notificationJob struct {
	UserID  string                  `json:"user_id"`
	Kind    models.NotificationKind `json:"kind"`
	Payload map[string]string       `json:"payload"`
}

// NewNotificationService builds the service and its dispatch queue.
// Call Start before use and Stop on shutdown.
func NewNotificationService(repo notificationStore, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{repo: repo, logger: logger}
	cfg.Logger = logger
	svc.queue = jobs.NewQueue("notifications", svc.deliver, cfg)
	return svc
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify implements the Notifier sink used by the workflow engine.
func (s *NotificationService) Notify(ctx context.Context, userID string, kind models.NotificationKind, payload map[string]string) {
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: string(kind),
		Payload: notificationJob{
			UserID:  userID,
			Kind:    kind,
			Payload: payload,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("notification enqueue failed",
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

// deliver persists the notification row. Runs on a queue worker.
func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationJob)
	if !ok {
		s.logger.Error("unexpected notification payload type", zap.String("job_id", job.ID))
		return nil
	}
	var raw []byte
	if len(payload.Payload) > 0 {
		var err error
		raw, err = json.Marshal(payload.Payload)
		if err != nil {
			s.logger.Error("notification payload marshal failed", zap.Error(err))
			return nil
		}
	}
	return s.repo.Create(ctx, &models.Notification{
		UserID:  payload.UserID,
		Kind:    payload.Kind,
		Payload: raw,
	})
}

// List returns the caller's notifications, optionally only unread ones.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, int, error) {
	notifications, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return notifications, unread, nil
}

// MarkRead acknowledges one of the caller's notifications.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead acknowledges everything unread for the caller.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return nil
}
