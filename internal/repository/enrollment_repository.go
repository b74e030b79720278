package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusflow/registration-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments. Rows are created
// and status-transitioned, never deleted.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, section_id, course_id, semester_id, status, enrolled_at, dropped_at, grade`

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, student_id, section_id, course_id, semester_id, status, enrolled_at, dropped_at, grade)
        VALUES (:id, :student_id, :section_id, :course_id, :semester_id, :status, :enrolled_at, :dropped_at, :grade)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with course and section info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.section_id, e.course_id, e.semester_id, e.status, e.enrolled_at, e.dropped_at, e.grade,
        c.code AS course_code, c.name AS course_name, c.credits, s.code AS section_code
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        JOIN sections s ON s.id = e.section_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsActive reports whether the student already holds a registered or
// waitlisted enrollment for the section.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, sectionID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND section_id = $2 AND status IN ($3, $4) LIMIT 1`
	var exists int
	err := r.db.GetContext(ctx, &exists, query, studentID, sectionID,
		models.EnrollmentStatusRegistered, models.EnrollmentStatusWaitlisted)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// ListActiveByStudent returns the student's active enrollments for a
// semester with course detail.
func (r *EnrollmentRepository) ListActiveByStudent(ctx context.Context, studentID, semesterID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.section_id, e.course_id, e.semester_id, e.status, e.enrolled_at, e.dropped_at, e.grade,
        c.code AS course_code, c.name AS course_name, c.credits, s.code AS section_code
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        JOIN sections s ON s.id = e.section_id
        WHERE e.student_id = $1 AND e.semester_id = $2 AND e.status IN ($3, $4)
        ORDER BY e.enrolled_at`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, semesterID,
		models.EnrollmentStatusRegistered, models.EnrollmentStatusWaitlisted); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return enrollments, nil
}

// ActiveCredits sums the credits of the student's active enrollments for the
// semester.
func (r *EnrollmentRepository) ActiveCredits(ctx context.Context, studentID, semesterID string) (int, error) {
	const query = `SELECT COALESCE(SUM(c.credits), 0)
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1 AND e.semester_id = $2 AND e.status IN ($3, $4)`
	var total int
	if err := r.db.GetContext(ctx, &total, query, studentID, semesterID,
		models.EnrollmentStatusRegistered, models.EnrollmentStatusWaitlisted); err != nil {
		return 0, fmt.Errorf("sum active credits: %w", err)
	}
	return total, nil
}

// ListCompleted returns the student's completed courses with recorded grades,
// for prerequisite evaluation.
func (r *EnrollmentRepository) ListCompleted(ctx context.Context, studentID string) ([]models.CompletedCourse, error) {
	const query = `SELECT course_id, grade FROM enrollments WHERE student_id = $1 AND grade IS NOT NULL`
	var completed []models.CompletedCourse
	if err := r.db.SelectContext(ctx, &completed, query, studentID); err != nil {
		return nil, fmt.Errorf("list completed courses: %w", err)
	}
	return completed, nil
}

// UpdateStatus transitions an enrollment's status.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, droppedAt *time.Time) error {
	const query = `UPDATE enrollments SET status = $2, dropped_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, droppedAt); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN courses c ON c.id = e.course_id
JOIN sections s ON s.id = e.section_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("e.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("e.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.section_id, e.course_id, e.semester_id, e.status, e.enrolled_at, e.dropped_at, e.grade,
        c.code AS course_code, c.name AS course_name, c.credits, s.code AS section_code
        %s ORDER BY e.enrolled_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// Roster returns the active enrollments of a section with student identity,
// ordered by enrollment time.
func (r *EnrollmentRepository) Roster(ctx context.Context, sectionID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.id AS enrollment_id, st.student_code, u.full_name, e.status, e.enrolled_at
        FROM enrollments e
        JOIN students st ON st.id = e.student_id
        JOIN users u ON u.id = st.user_id
        WHERE e.section_id = $1 AND e.status IN ($2, $3)
        ORDER BY e.enrolled_at`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, sectionID,
		models.EnrollmentStatusRegistered, models.EnrollmentStatusWaitlisted); err != nil {
		return nil, fmt.Errorf("section roster: %w", err)
	}
	return roster, nil
}
