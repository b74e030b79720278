package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusflow/registration-api/internal/lock"
	"github.com/campusflow/registration-api/internal/models"
	"github.com/campusflow/registration-api/pkg/config"
	appErrors "github.com/campusflow/registration-api/pkg/errors"
)

type enrollmentStore interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsActive(ctx context.Context, studentID, sectionID string) (bool, error)
	ListActiveByStudent(ctx context.Context, studentID, semesterID string) ([]models.EnrollmentDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, droppedAt *time.Time) error
}

type sectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type semesterReader interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

type eligibilityChecker interface {
	Evaluate(ctx context.Context, studentID string, course *models.Course, section *models.Section, semester *models.Semester) (*EligibilityResult, error)
}

type seatLedger interface {
	Lock(ctx context.Context, sectionID string) (*lock.Lease, error)
	Unlock(ctx context.Context, lease *lock.Lease)
	Claim(ctx context.Context, sectionID string) (ClaimResult, error)
	Release(ctx context.Context, sectionID string) error
}

type auditRecorder interface {
	Record(ctx context.Context, enrollmentID string, action models.EnrollmentAction, meta models.RequestMeta) (string, error)
}

type cacheSynchronizer interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	InvalidateSection(ctx context.Context, sectionID string)
	InvalidateStudent(ctx context.Context, studentID string)
}

type outcomeNotifier interface {
	EnrollmentOutcome(studentID, sectionID string, action models.EnrollmentAction)
}

// studentLockKey serializes concurrent submissions from one student so two
// in-flight requests cannot both pass a stale credit-limit read.
func studentLockKey(studentID string) string {
	return "lock:student:" + studentID
}

// EnrollRequest describes an enrollment submission.
type EnrollRequest struct {
	SectionID string `json:"section_id" validate:"required"`
}

// EnrollmentService drives the lifecycle of an enrollment request from
// submission to a terminal outcome, coordinating eligibility, the seat
// ledger, the audit trail and derived-view invalidation.
type EnrollmentService struct {
	enrollments enrollmentStore
	sections    sectionReader
	courses     courseReader
	semesters   semesterReader
	eligibility eligibilityChecker
	ledger      seatLedger
	audit       auditRecorder
	caches      cacheSynchronizer
	notifier    outcomeNotifier
	locks       leaser

	studentLockTTL     time.Duration
	enrollmentCacheTTL time.Duration
	validator          *validator.Validate
	metrics            *MetricsService
	logger             *zap.Logger
	now                func() time.Time
}

// EnrollmentServiceDeps bundles the state machine's collaborators.
type EnrollmentServiceDeps struct {
	Enrollments enrollmentStore
	Sections    sectionReader
	Courses     courseReader
	Semesters   semesterReader
	Eligibility eligibilityChecker
	Ledger      seatLedger
	Audit       auditRecorder
	Caches      cacheSynchronizer
	Notifier    outcomeNotifier
	Locks       leaser
	Metrics     *MetricsService
	Logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(deps EnrollmentServiceDeps, cfg config.RegistrationConfig) *EnrollmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	studentTTL := cfg.StudentLockTTL
	if studentTTL <= 0 {
		studentTTL = 5 * time.Second
	}
	return &EnrollmentService{
		enrollments:        deps.Enrollments,
		sections:           deps.Sections,
		courses:            deps.Courses,
		semesters:          deps.Semesters,
		eligibility:        deps.Eligibility,
		ledger:             deps.Ledger,
		audit:              deps.Audit,
		caches:             deps.Caches,
		notifier:           deps.Notifier,
		locks:              deps.Locks,
		studentLockTTL:     studentTTL,
		enrollmentCacheTTL: cfg.EnrollmentCacheTTL,
		validator:          validator.New(),
		metrics:            deps.Metrics,
		logger:             logger,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// Enroll submits an enrollment request for the student and drives it to a
// terminal outcome: registered, waitlisted, or a structured rejection.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID string, req EnrollRequest, meta models.RequestMeta) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "requester has no student profile")
	}

	// Serialize submissions per student: two concurrent requests must not
	// both pass a stale credit-limit read.
	studentLease, err := s.locks.Acquire(ctx, studentLockKey(studentID), s.studentLockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.metrics.RecordOutcome("busy")
			return nil, appErrors.Clone(appErrors.ErrSectionBusy, "another enrollment request for this student is in progress")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to serialize student requests")
	}
	defer func() {
		if err := s.locks.Release(ctx, studentLease); err != nil {
			s.logger.Warn("student lease release failed", zap.String("student_id", studentID), zap.Error(err))
		}
	}()

	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if section.Status == models.SectionStatusClosed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section is closed")
	}

	course, err := s.courses.FindByID(ctx, section.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	semester, err := s.semesters.FindByID(ctx, section.SemesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}

	if !semester.RegistrationOpenAt(s.now()) {
		return nil, appErrors.ErrRegistrationClosed
	}

	exists, err := s.enrollments.ExistsActive(ctx, studentID, section.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.ErrDuplicateActive
	}

	// From here the section lease orders the eligibility re-check ahead of
	// the seat claim, so a seat cannot go to a request that raced past a
	// stale read.
	sectionLease, err := s.ledger.Lock(ctx, section.ID)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrSectionBusy) {
			s.metrics.RecordOutcome("busy")
		}
		return nil, err
	}
	defer s.ledger.Unlock(ctx, sectionLease)

	result, err := s.eligibility.Evaluate(ctx, studentID, course, section, semester)
	if err != nil {
		return nil, err
	}
	if result.WindowClosed {
		return nil, appErrors.ErrRegistrationClosed
	}
	if !result.Eligible {
		s.metrics.RecordOutcome("rejected")
		return nil, appErrors.Clone(appErrors.ErrEligibility, result.FirstReason())
	}

	claim, err := s.ledger.Claim(ctx, section.ID)
	if err != nil {
		return nil, err
	}

	status := models.EnrollmentStatusWaitlisted
	action := models.ActionWaitlisted
	if claim == ClaimGranted {
		status = models.EnrollmentStatusRegistered
		action = models.ActionRegistered
	}

	enrollment := &models.Enrollment{
		StudentID:  studentID,
		SectionID:  section.ID,
		CourseID:   course.ID,
		SemesterID: semester.ID,
		Status:     status,
		EnrolledAt: s.now(),
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		// The seat was claimed but the enrollment row was not written; the
		// counter must not drift from the true count of registered
		// enrollments, so release before surfacing the failure.
		if claim == ClaimGranted {
			s.compensateClaim(ctx, section.ID, studentID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrConsistency.Code, appErrors.ErrConsistency.Status, appErrors.ErrConsistency.Message)
	}

	if _, err := s.audit.Record(ctx, enrollment.ID, action, meta); err != nil {
		// Audit failure never rolls back the committed decision.
		s.metrics.RecordAuditFailure()
	}

	s.caches.InvalidateSection(ctx, section.ID)
	s.caches.InvalidateStudent(ctx, studentID)
	s.notifier.EnrollmentOutcome(studentID, section.ID, action)
	s.metrics.RecordOutcome(string(action))

	return s.detail(enrollment, course, section), nil
}

// Drop transitions an enrollment to dropped. Only the owning student or an
// administrator may drop; a registered enrollment returns its seat,
// a waitlisted one never held a seat.
func (s *EnrollmentService) Drop(ctx context.Context, enrollmentID, requesterStudentID string, admin bool, meta models.RequestMeta) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !admin && enrollment.StudentID != requesterStudentID {
		return nil, appErrors.ErrForbidden
	}
	if !enrollment.Status.Active() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment already dropped")
	}

	sectionLease, err := s.ledger.Lock(ctx, enrollment.SectionID)
	if err != nil {
		return nil, err
	}
	defer s.ledger.Unlock(ctx, sectionLease)

	wasRegistered := enrollment.Status == models.EnrollmentStatusRegistered
	droppedAt := s.now()
	if err := s.enrollments.UpdateStatus(ctx, enrollmentID, models.EnrollmentStatusDropped, &droppedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}

	if wasRegistered {
		if err := s.ledger.Release(ctx, enrollment.SectionID); err != nil {
			// The enrollment is marked dropped but the seat was not
			// returned. Revert the status so the ledger and the enrollment
			// table stay consistent, then surface the failure.
			if revertErr := s.enrollments.UpdateStatus(ctx, enrollmentID, enrollment.Status, nil); revertErr != nil {
				s.logger.Error("failed to revert drop after release failure",
					zap.String("enrollment_id", enrollmentID),
					zap.Error(revertErr))
			}
			s.metrics.RecordCompensation()
			return nil, appErrors.Wrap(err, appErrors.ErrConsistency.Code, appErrors.ErrConsistency.Status, appErrors.ErrConsistency.Message)
		}
	}

	if _, err := s.audit.Record(ctx, enrollmentID, models.ActionDropped, meta); err != nil {
		s.metrics.RecordAuditFailure()
	}

	s.caches.InvalidateSection(ctx, enrollment.SectionID)
	s.caches.InvalidateStudent(ctx, enrollment.StudentID)
	s.notifier.EnrollmentOutcome(enrollment.StudentID, enrollment.SectionID, models.ActionDropped)
	s.metrics.RecordOutcome("dropped")

	enrollment.Status = models.EnrollmentStatusDropped
	enrollment.DroppedAt = &droppedAt
	return enrollment, nil
}

// ListForStudent returns the student's active enrollments for a semester,
// served from the derived view when fresh.
func (s *EnrollmentService) ListForStudent(ctx context.Context, studentID, semesterID string) ([]models.EnrollmentDetail, error) {
	key := studentEnrollmentsKey(studentID) + ":" + semesterID
	var cached []models.EnrollmentDetail
	if s.caches.Get(ctx, key, &cached) {
		s.metrics.RecordCacheOperation(true)
		return cached, nil
	}
	s.metrics.RecordCacheOperation(false)

	enrollments, err := s.enrollments.ListActiveByStudent(ctx, studentID, semesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	s.caches.Set(ctx, key, enrollments, s.enrollmentCacheTTL)
	return enrollments, nil
}

// List returns a filtered enrollment page for staff views.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

func (s *EnrollmentService) compensateClaim(ctx context.Context, sectionID, studentID string) {
	s.metrics.RecordCompensation()
	if err := s.ledger.Release(ctx, sectionID); err != nil {
		// Nothing left to do in-request; the counter is now drifted and
		// needs operator attention.
		s.logger.Error("compensating seat release failed",
			zap.String("section_id", sectionID),
			zap.String("student_id", studentID),
			zap.Error(err))
		return
	}
	s.logger.Error("seat released after failed enrollment write",
		zap.String("section_id", sectionID),
		zap.String("student_id", studentID))
}

func (s *EnrollmentService) detail(enrollment *models.Enrollment, course *models.Course, section *models.Section) *models.EnrollmentDetail {
	return &models.EnrollmentDetail{
		Enrollment:  *enrollment,
		CourseCode:  course.Code,
		CourseName:  course.Name,
		Credits:     course.Credits,
		SectionCode: section.Code,
	}
}
