package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusflow/registration-api/internal/models"
)

// HistoryRepository appends the immutable enrollment audit trail. There is
// deliberately no update or delete here.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs the repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append writes one audit event and returns its ID.
func (r *HistoryRepository) Append(ctx context.Context, event *models.EnrollmentEvent) (string, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_events (id, enrollment_id, action, occurred_at, ip_address, user_agent)
        VALUES (:id, :enrollment_id, :action, :occurred_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return "", fmt.Errorf("append enrollment event: %w", err)
	}
	return event.ID, nil
}

// ListByEnrollment returns the audit trail of one enrollment, oldest first.
func (r *HistoryRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.EnrollmentEvent, error) {
	const query = `SELECT id, enrollment_id, action, occurred_at, ip_address, user_agent
        FROM enrollment_events WHERE enrollment_id = $1 ORDER BY occurred_at`
	var events []models.EnrollmentEvent
	if err := r.db.SelectContext(ctx, &events, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment events: %w", err)
	}
	return events, nil
}
