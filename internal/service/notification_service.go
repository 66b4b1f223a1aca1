package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/hall-adp-api/internal/models"
	"github.com/noah-isme/hall-adp-api/pkg/jobs"
)

// auditLogger records audit trail entries. Shared by every service that
// mutates pipeline state.
type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// eventPublisher hands lifecycle events to the notification dispatcher.
type eventPublisher interface {
	Publish(event models.NotificationEvent)
}

// Notifier delivers a notification event to students. The transport is
// an external concern; implementations may fan out to mail, SMS or push.
type Notifier interface {
	Notify(ctx context.Context, event models.NotificationEvent) error
}

// LogNotifier is the default Notifier: it only records the event. Used
// when no delivery transport is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify logs the event and succeeds.
func (n LogNotifier) Notify(_ context.Context, event models.NotificationEvent) error {
	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("notification event",
		zap.String("type", string(event.Type)),
		zap.String("hall_id", event.HallID),
		zap.String("student_id", event.StudentID),
		zap.String("resource_id", event.ResourceID))
	return nil
}

// NotificationService dispatches lifecycle events to the Notifier through
// a background worker queue. Publishing never blocks the caller's
// request; a full queue drops the event with a warning.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService wires the dispatcher around the given notifier.
func NewNotificationService(notifier Notifier, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	svc := &NotificationService{logger: logger}
	svc.queue = jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(models.NotificationEvent)
		if !ok {
			logger.Error("notification job carried unexpected payload", zap.String("job_id", job.ID))
			return nil
		}
		return notifier.Notify(ctx, event)
	}, cfg)
	return svc
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Publish enqueues an event for asynchronous delivery.
func (s *NotificationService) Publish(event models.NotificationEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(event.Type),
		Payload: event,
	}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.logger.Warn("dropping notification event",
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}
