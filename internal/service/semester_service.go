package service

import (
	"context"
	"database/sql"

	"github.com/campusflow/registration-api/internal/models"
	appErrors "github.com/campusflow/registration-api/pkg/errors"
)

type semesterStore interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	List(ctx context.Context) ([]models.Semester, error)
}

// SemesterService serves the semester reference data.
type SemesterService struct {
	semesters semesterStore
}

// NewSemesterService constructs SemesterService.
func NewSemesterService(semesters semesterStore) *SemesterService {
	return &SemesterService{semesters: semesters}
}

// List returns all semesters, most recent first.
func (s *SemesterService) List(ctx context.Context) ([]models.Semester, error) {
	semesters, err := s.semesters.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	return semesters, nil
}

// Get returns a single semester.
func (s *SemesterService) Get(ctx context.Context, id string) (*models.Semester, error) {
	semester, err := s.semesters.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	return semester, nil
}
