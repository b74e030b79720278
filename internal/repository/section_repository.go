package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campusflow/registration-api/internal/models"
)

// SectionRepository handles persistence of course sections. Seat counter
// mutation happens only through ClaimSeat/ReleaseSeat; both are conditional
// updates so the capacity invariant holds even without an ambient lock.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// FindByID returns a section by its ID.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, course_id, semester_id, teacher_id, code, capacity, seats_taken, status FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// ListByCourse returns all sections offered for a course.
func (r *SectionRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Section, error) {
	const query = `SELECT id, course_id, semester_id, teacher_id, code, capacity, seats_taken, status FROM sections WHERE course_id = $1 ORDER BY code`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, courseID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// ClaimSeat increments seats_taken if and only if a seat is free, flipping
// the status to FULL when the last seat goes. The WHERE guard makes the
// read-check-increment a single atomic statement: zero rows affected means
// the section was already at capacity.
func (r *SectionRepository) ClaimSeat(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE sections
        SET seats_taken = seats_taken + 1,
            status = CASE WHEN seats_taken + 1 >= capacity THEN $2 ELSE status END
        WHERE id = $1 AND seats_taken < capacity`
	res, err := r.db.ExecContext(ctx, query, id, models.SectionStatusFull)
	if err != nil {
		return false, fmt.Errorf("claim seat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim seat result: %w", err)
	}
	return affected == 1, nil
}

// ReleaseSeat decrements seats_taken (floor at zero) and reopens a FULL
// section. Each call must correspond to exactly one prior granted claim.
func (r *SectionRepository) ReleaseSeat(ctx context.Context, id string) error {
	const query = `UPDATE sections
        SET seats_taken = GREATEST(seats_taken - 1, 0),
            status = CASE WHEN status = $2 THEN $3 ELSE status END
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.SectionStatusFull, models.SectionStatusOpen); err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}
