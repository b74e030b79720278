package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusflow/registration-api/internal/models"
	"github.com/campusflow/registration-api/pkg/config"
	"github.com/campusflow/registration-api/pkg/jobs"
)

// OutcomeMessage describes an enrollment outcome for asynchronous delivery.
type OutcomeMessage struct {
	StudentID string                  `json:"student_id"`
	SectionID string                  `json:"section_id"`
	Action    models.EnrollmentAction `json:"action"`
}

// NotificationService dispatches enrollment outcome messages through a
// background worker pool. Callers fire and forget; delivery itself (email,
// push) is an external collaborator behind the handler.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs NotificationService.
func NewNotificationService(cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{logger: logger}
	s.queue = jobs.NewQueue("notifications", s.dispatch, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// EnrollmentOutcome enqueues an outcome message. Enqueue failures are
// logged and swallowed; notifications never fail an enrollment.
func (s *NotificationService) EnrollmentOutcome(studentID, sectionID string, action models.EnrollmentAction) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "enrollment_outcome",
		Payload: OutcomeMessage{StudentID: studentID, SectionID: sectionID, Action: action},
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("student_id", studentID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func (s *NotificationService) dispatch(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(OutcomeMessage)
	if !ok {
		s.logger.Warn("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	// Delivery is externalized; record the dispatch for the delivery
	// pipeline to pick up.
	s.logger.Info("notification dispatched",
		zap.String("student_id", msg.StudentID),
		zap.String("section_id", msg.SectionID),
		zap.String("action", string(msg.Action)))
	return nil
}
