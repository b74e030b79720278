package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusflow/registration-api/internal/models"
	appErrors "github.com/campusflow/registration-api/pkg/errors"
)

type prerequisiteReader interface {
	ListPrerequisites(ctx context.Context, courseID string) ([]models.Prerequisite, error)
}

type completionReader interface {
	ListCompleted(ctx context.Context, studentID string) ([]models.CompletedCourse, error)
	ActiveCredits(ctx context.Context, studentID, semesterID string) (int, error)
}

type slotReader interface {
	ListBySection(ctx context.Context, sectionID string) ([]models.ScheduleSlot, error)
	ListActiveForStudent(ctx context.Context, studentID, semesterID string) ([]models.ScheduleSlot, error)
}

// EligibilityResult is the outcome of evaluating a candidate enrollment.
// Reasons lists every failed check; callers surface the first one.
type EligibilityResult struct {
	Eligible     bool     `json:"eligible"`
	WindowClosed bool     `json:"window_closed"`
	Reasons      []string `json:"reasons,omitempty"`
}

// FirstReason returns the first blocking reason, if any.
func (r *EligibilityResult) FirstReason() string {
	if r == nil || len(r.Reasons) == 0 {
		return ""
	}
	return r.Reasons[0]
}

// EligibilityService evaluates whether a student may enroll in a section.
// All checks are pure reads; the service never writes.
type EligibilityService struct {
	courses     prerequisiteReader
	enrollments completionReader
	schedules   slotReader
	maxCredits  int
	now         func() time.Time
	logger      *zap.Logger
}

// NewEligibilityService constructs EligibilityService.
func NewEligibilityService(courses prerequisiteReader, enrollments completionReader, schedules slotReader, maxCredits int, logger *zap.Logger) *EligibilityService {
	if maxCredits <= 0 {
		maxCredits = 24
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{
		courses:     courses,
		enrollments: enrollments,
		schedules:   schedules,
		maxCredits:  maxCredits,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
	}
}

// Evaluate runs every eligibility check for the candidate (student, section)
// pair. A closed registration window short-circuits the remaining checks.
func (s *EligibilityService) Evaluate(ctx context.Context, studentID string, course *models.Course, section *models.Section, semester *models.Semester) (*EligibilityResult, error) {
	if !semester.RegistrationOpenAt(s.now()) {
		return &EligibilityResult{WindowClosed: true, Reasons: []string{"registration window is closed"}}, nil
	}

	result := &EligibilityResult{}

	if err := s.checkPrerequisites(ctx, studentID, course, result); err != nil {
		return nil, err
	}
	if err := s.checkScheduleConflicts(ctx, studentID, section, semester, result); err != nil {
		return nil, err
	}
	if err := s.checkCreditLimit(ctx, studentID, course, semester, result); err != nil {
		return nil, err
	}

	result.Eligible = len(result.Reasons) == 0
	return result, nil
}

func (s *EligibilityService) checkPrerequisites(ctx context.Context, studentID string, course *models.Course, result *EligibilityResult) error {
	rules, err := s.courses.ListPrerequisites(ctx, course.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
	}
	if len(rules) == 0 {
		return nil
	}

	completed, err := s.enrollments.ListCompleted(ctx, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completed courses")
	}

	// Keep the best grade per course; retaken courses count their highest.
	best := make(map[string]models.Grade, len(completed))
	for _, c := range completed {
		if prev, ok := best[c.CourseID]; !ok || c.Grade.AtLeast(prev) {
			best[c.CourseID] = c.Grade
		}
	}

	for _, rule := range rules {
		grade, ok := best[rule.RequiredCourseID]
		if !ok {
			result.Reasons = append(result.Reasons, fmt.Sprintf("missing prerequisite %s", rule.RequiredCode))
			continue
		}
		// A rule without an explicit minimum still requires a passing
		// grade; D and F never complete a prerequisite.
		minGrade := rule.MinGrade
		if minGrade == "" {
			minGrade = models.GradeC
		}
		if !grade.AtLeast(minGrade) {
			result.Reasons = append(result.Reasons, fmt.Sprintf("prerequisite %s requires grade %s or better, got %s", rule.RequiredCode, minGrade, grade))
		}
	}
	return nil
}

func (s *EligibilityService) checkScheduleConflicts(ctx context.Context, studentID string, section *models.Section, semester *models.Semester, result *EligibilityResult) error {
	candidate, err := s.schedules.ListBySection(ctx, section.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section schedule")
	}
	if len(candidate) == 0 {
		return nil
	}

	current, err := s.schedules.ListActiveForStudent(ctx, studentID, semester.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student schedule")
	}

	conflicted := make(map[string]bool)
	for _, slot := range candidate {
		for _, existing := range current {
			if slot.Overlaps(existing) && !conflicted[existing.SectionID] {
				conflicted[existing.SectionID] = true
				result.Reasons = append(result.Reasons, fmt.Sprintf("schedule conflict with section %s", existing.SectionID))
			}
		}
	}
	return nil
}

func (s *EligibilityService) checkCreditLimit(ctx context.Context, studentID string, course *models.Course, semester *models.Semester, result *EligibilityResult) error {
	current, err := s.enrollments.ActiveCredits(ctx, studentID, semester.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum credits")
	}
	if total := current + course.Credits; total > s.maxCredits {
		result.Reasons = append(result.Reasons, fmt.Sprintf("credit limit exceeded (%d/%d)", total, s.maxCredits))
	}
	return nil
}
