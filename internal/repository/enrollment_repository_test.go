package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campusflow/registration-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.Enrollment{
		StudentID:  "stu-1",
		SectionID:  "sec-1",
		CourseID:   "crs-1",
		SemesterID: "sem-1",
		Status:     models.EnrollmentStatusRegistered,
	}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	require.NotEmpty(t, enrollment.ID)
	require.False(t, enrollment.EnrolledAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments")).
		WithArgs("stu-1", "sec-1", models.EnrollmentStatusRegistered, models.EnrollmentStatusWaitlisted).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsActive(context.Background(), "stu-1", "sec-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActiveNoRow(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments")).
		WithArgs("stu-1", "sec-1", models.EnrollmentStatusRegistered, models.EnrollmentStatusWaitlisted).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsActive(context.Background(), "stu-1", "sec-1")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryActiveCredits(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(c.credits), 0)")).
		WithArgs("stu-1", "sem-1", models.EnrollmentStatusRegistered, models.EnrollmentStatusWaitlisted).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(18))

	total, err := repo.ActiveCredits(context.Background(), "stu-1", "sem-1")
	require.NoError(t, err)
	require.Equal(t, 18, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	droppedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status")).
		WithArgs("enr-1", models.EnrollmentStatusDropped, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "enr-1", models.EnrollmentStatusDropped, &droppedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListCompleted(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	rows := sqlmock.NewRows([]string{"course_id", "grade"}).
		AddRow("crs-1", "A").
		AddRow("crs-2", "C+")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT course_id, grade FROM enrollments")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	completed, err := repo.ListCompleted(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, completed, 2)
	require.Equal(t, models.GradeA, completed[0].Grade)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryRoster(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	rows := sqlmock.NewRows([]string{"enrollment_id", "student_code", "full_name", "status", "enrolled_at"}).
		AddRow("enr-1", "S2024001", "Alice Chen", models.EnrollmentStatusRegistered, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT e.id AS enrollment_id")).
		WithArgs("sec-1", models.EnrollmentStatusRegistered, models.EnrollmentStatusWaitlisted).
		WillReturnRows(rows)

	roster, err := repo.Roster(context.Background(), "sec-1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.Equal(t, "S2024001", roster[0].StudentCode)
	require.NoError(t, mock.ExpectationsWereMet())
}
