package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campusflow/registration-api/internal/models"
)

// ScheduleRepository reads the weekly meeting slots attached to sections.
// Slots are reference data; nothing here mutates them.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ListBySection returns the slots for one section.
func (r *ScheduleRepository) ListBySection(ctx context.Context, sectionID string) ([]models.ScheduleSlot, error) {
	const query = `SELECT id, section_id, day_of_week, start_min, end_min, room FROM schedule_slots WHERE section_id = $1 ORDER BY day_of_week, start_min`
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section slots: %w", err)
	}
	return slots, nil
}

// ListActiveForStudent returns the slots of every section the student is
// actively enrolled in for the semester, for conflict detection.
func (r *ScheduleRepository) ListActiveForStudent(ctx context.Context, studentID, semesterID string) ([]models.ScheduleSlot, error) {
	const query = `SELECT sl.id, sl.section_id, sl.day_of_week, sl.start_min, sl.end_min, sl.room
        FROM schedule_slots sl
        JOIN enrollments e ON e.section_id = sl.section_id
        WHERE e.student_id = $1 AND e.semester_id = $2 AND e.status IN ($3, $4)`
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, studentID, semesterID,
		models.EnrollmentStatusRegistered, models.EnrollmentStatusWaitlisted); err != nil {
		return nil, fmt.Errorf("list student slots: %w", err)
	}
	return slots, nil
}
