package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/campusflow/registration-api/internal/models"
	appErrors "github.com/campusflow/registration-api/pkg/errors"
)

type eventAppender interface {
	Append(ctx context.Context, event *models.EnrollmentEvent) (string, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.EnrollmentEvent, error)
}

// AuditService appends the immutable enrollment audit trail. Appends never
// roll back the decision they describe: a failure is surfaced to the caller
// for logging and counting, nothing more.
type AuditService struct {
	events eventAppender
	logger *zap.Logger
}

// NewAuditService constructs AuditService.
func NewAuditService(events eventAppender, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{events: events, logger: logger}
}

// Record appends one audit event and returns its ID.
func (s *AuditService) Record(ctx context.Context, enrollmentID string, action models.EnrollmentAction, meta models.RequestMeta) (string, error) {
	id, err := s.events.Append(ctx, &models.EnrollmentEvent{
		EnrollmentID: enrollmentID,
		Action:       action,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	})
	if err != nil {
		s.logger.Error("audit append failed",
			zap.String("enrollment_id", enrollmentID),
			zap.String("action", string(action)),
			zap.Error(err))
		return "", err
	}
	return id, nil
}

// History returns the audit trail of one enrollment.
func (s *AuditService) History(ctx context.Context, enrollmentID string) ([]models.EnrollmentEvent, error) {
	events, err := s.events.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment history")
	}
	return events, nil
}
