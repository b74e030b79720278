package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campusflow/registration-api/internal/models"
)

func newSectionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSectionRepositoryClaimSeatGranted(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sections")).
		WithArgs("sec-1", models.SectionStatusFull).
		WillReturnResult(sqlmock.NewResult(0, 1))

	granted, err := repo.ClaimSeat(context.Background(), "sec-1")
	require.NoError(t, err)
	require.True(t, granted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryClaimSeatAtCapacity(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sections")).
		WithArgs("sec-1", models.SectionStatusFull).
		WillReturnResult(sqlmock.NewResult(0, 0))

	granted, err := repo.ClaimSeat(context.Background(), "sec-1")
	require.NoError(t, err)
	require.False(t, granted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryReleaseSeat(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sections")).
		WithArgs("sec-1", models.SectionStatusFull, models.SectionStatusOpen).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ReleaseSeat(context.Background(), "sec-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	rows := sqlmock.NewRows([]string{"id", "course_id", "semester_id", "teacher_id", "code", "capacity", "seats_taken", "status"}).
		AddRow("sec-1", "crs-1", "sem-1", nil, "CS101-A", 30, 12, models.SectionStatusOpen)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, semester_id")).
		WithArgs("sec-1").
		WillReturnRows(rows)

	section, err := repo.FindByID(context.Background(), "sec-1")
	require.NoError(t, err)
	require.Equal(t, 18, section.SeatsAvailable())
	require.NoError(t, mock.ExpectationsWereMet())
}
