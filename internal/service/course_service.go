package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/campusflow/registration-api/internal/models"
	"github.com/campusflow/registration-api/pkg/config"
	appErrors "github.com/campusflow/registration-api/pkg/errors"
)

type courseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	ListPrerequisites(ctx context.Context, courseID string) ([]models.Prerequisite, error)
}

type sectionLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Section, error)
}

// CourseListResult pairs a catalog page with its total count.
type CourseListResult struct {
	Courses []models.Course `json:"courses"`
	Total   int             `json:"total"`
}

// CourseService serves the read-only course catalog.
type CourseService struct {
	courses  courseStore
	sections sectionLister
	caches   cacheSynchronizer
	cacheTTL config.RegistrationConfig
	logger   *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(courses courseStore, sections sectionLister, caches cacheSynchronizer, cfg config.RegistrationConfig, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{courses: courses, sections: sections, caches: caches, cacheTTL: cfg, logger: logger}
}

// List returns a catalog page. Pages are cached since the catalog only
// changes between semesters.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) (*CourseListResult, error) {
	key := courseListKey(fmt.Sprintf("%s:%s:%d:%d", filter.DepartmentID, filter.SemesterID, filter.Page, filter.PageSize))

	var cached CourseListResult
	if s.caches != nil {
		if s.caches.Get(ctx, key, &cached) {
			return &cached, nil
		}
	}

	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	result := &CourseListResult{Courses: courses, Total: total}
	if s.caches != nil {
		s.caches.Set(ctx, key, result, s.cacheTTL.CourseCacheTTL)
	}
	return result, nil
}

// Detail returns a course with its sections and prerequisites.
func (s *CourseService) Detail(ctx context.Context, courseID string) (*models.CourseDetail, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	sections, err := s.sections.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	prereqs, err := s.courses.ListPrerequisites(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
	}

	return &models.CourseDetail{Course: *course, Sections: sections, Prerequisites: prereqs}, nil
}
