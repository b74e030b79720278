package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusflow/registration-api/internal/lock"
	"github.com/campusflow/registration-api/internal/models"
	"github.com/campusflow/registration-api/pkg/config"
	appErrors "github.com/campusflow/registration-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[string]models.Enrollment
	active      map[string]bool
	created     []*models.Enrollment
	createErr   error
	status      map[string]models.EnrollmentStatus
	nextID      int
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	m.nextID++
	enrollment.ID = "enr-" + string(rune('0'+m.nextID))
	m.enrollments[enrollment.ID] = *enrollment
	m.created = append(m.created, enrollment)
	return nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ExistsActive(ctx context.Context, studentID, sectionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[studentID+":"+sectionID], nil
}

func (m *mockEnrollmentRepo) ListActiveByStudent(ctx context.Context, studentID, semesterID string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, droppedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == nil {
		m.status = make(map[string]models.EnrollmentStatus)
	}
	m.status[id] = status
	if e, ok := m.enrollments[id]; ok {
		e.Status = status
		e.DroppedAt = droppedAt
		m.enrollments[id] = e
	}
	return nil
}

type mockSectionReader struct {
	sections map[string]models.Section
}

func (m *mockSectionReader) FindByID(ctx context.Context, id string) (*models.Section, error) {
	if s, ok := m.sections[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockCourseReader struct {
	courses map[string]models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type mockSemesterReader struct {
	semesters map[string]models.Semester
}

func (m *mockSemesterReader) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if s, ok := m.semesters[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockEligibility struct {
	result *EligibilityResult
	err    error

	// Optional gate: entered signals the check started, proceed holds it
	// open so a test can overlap a second submission.
	entered chan struct{}
	proceed chan struct{}
}

func (m *mockEligibility) Evaluate(ctx context.Context, studentID string, course *models.Course, section *models.Section, semester *models.Semester) (*EligibilityResult, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.proceed != nil {
		<-m.proceed
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &EligibilityResult{Eligible: true}, nil
}

// mockLedger hands out seats from an in-memory counter under its own lock,
// mirroring the conditional update the real store runs.
type mockLedger struct {
	mu         sync.Mutex
	capacity   int
	taken      int
	released   int
	claimErr   error
	lockBusy   bool
	releaseErr error
}

func (m *mockLedger) Lock(ctx context.Context, sectionID string) (*lock.Lease, error) {
	if m.lockBusy {
		return nil, appErrors.ErrSectionBusy
	}
	return &lock.Lease{Key: SectionLockKey(sectionID), Token: "t"}, nil
}

func (m *mockLedger) Unlock(ctx context.Context, lease *lock.Lease) {}

func (m *mockLedger) Claim(ctx context.Context, sectionID string) (ClaimResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return "", m.claimErr
	}
	if m.taken < m.capacity {
		m.taken++
		return ClaimGranted, nil
	}
	return ClaimWaitlisted, nil
}

func (m *mockLedger) Release(ctx context.Context, sectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.releaseErr != nil {
		return m.releaseErr
	}
	m.taken--
	m.released++
	return nil
}

type mockAudit struct {
	mu      sync.Mutex
	actions []models.EnrollmentAction
	err     error
}

func (m *mockAudit) Record(ctx context.Context, enrollmentID string, action models.EnrollmentAction, meta models.RequestMeta) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action)
	if m.err != nil {
		return "", m.err
	}
	return "evt-1", nil
}

type mockCaches struct {
	mu                 sync.Mutex
	sectionInvalidated []string
	studentInvalidated []string
}

func (m *mockCaches) Get(ctx context.Context, key string, dest interface{}) bool { return false }

func (m *mockCaches) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {}

func (m *mockCaches) InvalidateSection(ctx context.Context, sectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sectionInvalidated = append(m.sectionInvalidated, sectionID)
}

func (m *mockCaches) InvalidateStudent(ctx context.Context, studentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.studentInvalidated = append(m.studentInvalidated, studentID)
}

type mockNotifier struct {
	mu      sync.Mutex
	actions []models.EnrollmentAction
}

func (m *mockNotifier) EnrollmentOutcome(studentID, sectionID string, action models.EnrollmentAction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action)
}

// mockLeaser backs the per-student lease with a real mutex-guarded map so
// concurrent tests exercise actual mutual exclusion.
type mockLeaser struct {
	mu   sync.Mutex
	held map[string]bool
}

func (m *mockLeaser) Acquire(ctx context.Context, key string, ttl time.Duration) (*lock.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = make(map[string]bool)
	}
	if m.held[key] {
		return nil, lock.ErrNotAcquired
	}
	m.held[key] = true
	return &lock.Lease{Key: key, Token: "t"}, nil
}

func (m *mockLeaser) Release(ctx context.Context, lease *lock.Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, lease.Key)
	return nil
}

type enrollmentFixture struct {
	repo     *mockEnrollmentRepo
	ledger   *mockLedger
	audit    *mockAudit
	caches   *mockCaches
	notifier *mockNotifier
	svc      *EnrollmentService
}

func newEnrollmentFixture(t *testing.T, capacity int) *enrollmentFixture {
	t.Helper()
	now := time.Now().UTC()
	f := &enrollmentFixture{
		repo:     &mockEnrollmentRepo{},
		ledger:   &mockLedger{capacity: capacity},
		audit:    &mockAudit{},
		caches:   &mockCaches{},
		notifier: &mockNotifier{},
	}
	sections := &mockSectionReader{sections: map[string]models.Section{
		"sec1": {ID: "sec1", CourseID: "crs1", SemesterID: "sem1", Code: "CS101-A", Capacity: capacity, Status: models.SectionStatusOpen},
	}}
	courses := &mockCourseReader{courses: map[string]models.Course{
		"crs1": {ID: "crs1", Code: "CS101", Name: "Intro", Credits: 4},
	}}
	semesters := &mockSemesterReader{semesters: map[string]models.Semester{
		"sem1": {ID: "sem1", RegistrationStart: now.Add(-time.Hour), RegistrationEnd: now.Add(time.Hour)},
	}}
	f.svc = NewEnrollmentService(EnrollmentServiceDeps{
		Enrollments: f.repo,
		Sections:    sections,
		Courses:     courses,
		Semesters:   semesters,
		Eligibility: &mockEligibility{},
		Ledger:      f.ledger,
		Audit:       f.audit,
		Caches:      f.caches,
		Notifier:    f.notifier,
		Locks:       &mockLeaser{},
		Logger:      zap.NewNop(),
	}, config.RegistrationConfig{})
	return f
}

func TestEnrollRegistersWhenSeatAvailable(t *testing.T) {
	f := newEnrollmentFixture(t, 2)

	detail, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusRegistered, detail.Status)
	assert.Equal(t, "CS101", detail.CourseCode)
	assert.Equal(t, 1, f.ledger.taken)
	assert.Equal(t, []models.EnrollmentAction{models.ActionRegistered}, f.audit.actions)
	assert.Equal(t, []string{"sec1"}, f.caches.sectionInvalidated)
	assert.Equal(t, []string{"stu1"}, f.caches.studentInvalidated)
	assert.Equal(t, []models.EnrollmentAction{models.ActionRegistered}, f.notifier.actions)
}

func TestEnrollWaitlistsWhenSectionFull(t *testing.T) {
	f := newEnrollmentFixture(t, 0)

	detail, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, detail.Status)
	assert.Equal(t, 0, f.ledger.taken)
	assert.Equal(t, []models.EnrollmentAction{models.ActionWaitlisted}, f.audit.actions)
}

func TestEnrollRejectsMissingSection(t *testing.T) {
	f := newEnrollmentFixture(t, 1)

	_, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "missing"}, models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollRejectsDuplicateActive(t *testing.T) {
	f := newEnrollmentFixture(t, 1)
	f.repo.active = map[string]bool{"stu1:sec1": true}

	_, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateActive))
	assert.Equal(t, 0, f.ledger.taken)
}

func TestEnrollRejectsClosedWindow(t *testing.T) {
	f := newEnrollmentFixture(t, 1)
	f.svc.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }

	_, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrRegistrationClosed))
	assert.Empty(t, f.repo.created)
}

func TestEnrollRejectsIneligibleStudent(t *testing.T) {
	f := newEnrollmentFixture(t, 1)
	f.svc.eligibility = &mockEligibility{result: &EligibilityResult{
		Reasons: []string{"missing prerequisite CS100"},
	}}

	_, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrEligibility))
	assert.Contains(t, appErrors.FromError(err).Message, "missing prerequisite CS100")
	assert.Equal(t, 0, f.ledger.taken)
}

func TestEnrollBusySectionIsRetryable(t *testing.T) {
	f := newEnrollmentFixture(t, 1)
	f.ledger.lockBusy = true

	_, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrSectionBusy))
}

func TestEnrollCompensatesSeatOnCreateFailure(t *testing.T) {
	f := newEnrollmentFixture(t, 1)
	f.repo.createErr = errors.New("write failed")

	_, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConsistency))
	assert.Equal(t, 0, f.ledger.taken)
	assert.Equal(t, 1, f.ledger.released)
	assert.Empty(t, f.audit.actions)
}

func TestEnrollAuditFailureDoesNotRollBack(t *testing.T) {
	f := newEnrollmentFixture(t, 1)
	f.audit.err = errors.New("audit store down")

	detail, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusRegistered, detail.Status)
	assert.Equal(t, 1, f.ledger.taken)
}

func TestEnrollSameStudentOverlapIsBusy(t *testing.T) {
	f := newEnrollmentFixture(t, 2)
	gate := &mockEligibility{entered: make(chan struct{}), proceed: make(chan struct{})}
	f.svc.eligibility = gate

	var wg sync.WaitGroup
	wg.Add(1)
	var firstDetail *models.EnrollmentDetail
	var firstErr error
	go func() {
		defer wg.Done()
		firstDetail, firstErr = f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	}()

	// The first submission holds the student lease inside its
	// eligibility check; a second overlapping one must bounce.
	<-gate.entered
	_, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrSectionBusy))

	close(gate.proceed)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, models.EnrollmentStatusRegistered, firstDetail.Status)
	assert.Equal(t, 1, f.ledger.taken)
}

func TestEnrollCapacityNeverExceeded(t *testing.T) {
	const capacity = 3
	const students = 10

	f := newEnrollmentFixture(t, capacity)

	var wg sync.WaitGroup
	results := make(chan models.EnrollmentStatus, students)
	for i := 0; i < students; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			studentID := "stu-" + string(rune('a'+n))
			detail, err := f.svc.Enroll(context.Background(), studentID, EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
			if err == nil {
				results <- detail.Status
			}
		}(i)
	}
	wg.Wait()
	close(results)

	registered := 0
	for status := range results {
		if status == models.EnrollmentStatusRegistered {
			registered++
		}
	}
	assert.Equal(t, capacity, registered)
	assert.Equal(t, capacity, f.ledger.taken)
}

func TestDropRegisteredReleasesSeat(t *testing.T) {
	f := newEnrollmentFixture(t, 1)

	detail, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, 1, f.ledger.taken)

	dropped, err := f.svc.Drop(context.Background(), detail.ID, "stu1", false, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, dropped.Status)
	assert.NotNil(t, dropped.DroppedAt)
	assert.Equal(t, 0, f.ledger.taken)
	assert.Equal(t, 1, f.ledger.released)
}

func TestDropWaitlistedKeepsSeatCount(t *testing.T) {
	f := newEnrollmentFixture(t, 0)

	detail, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusWaitlisted, detail.Status)

	_, err = f.svc.Drop(context.Background(), detail.ID, "stu1", false, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 0, f.ledger.released)
}

func TestDropForbiddenForOtherStudent(t *testing.T) {
	f := newEnrollmentFixture(t, 1)

	detail, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	require.NoError(t, err)

	_, err = f.svc.Drop(context.Background(), detail.ID, "stu2", false, models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestDropAdminMayDropAnyEnrollment(t *testing.T) {
	f := newEnrollmentFixture(t, 1)

	detail, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	require.NoError(t, err)

	dropped, err := f.svc.Drop(context.Background(), detail.ID, "", true, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, dropped.Status)
}

func TestDropAlreadyDroppedRejected(t *testing.T) {
	f := newEnrollmentFixture(t, 1)

	detail, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	require.NoError(t, err)
	_, err = f.svc.Drop(context.Background(), detail.ID, "stu1", false, models.RequestMeta{})
	require.NoError(t, err)

	_, err = f.svc.Drop(context.Background(), detail.ID, "stu1", false, models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestDropRevertsStatusWhenReleaseFails(t *testing.T) {
	f := newEnrollmentFixture(t, 1)

	detail, err := f.svc.Enroll(context.Background(), "stu1", EnrollRequest{SectionID: "sec1"}, models.RequestMeta{})
	require.NoError(t, err)

	f.ledger.releaseErr = errors.New("update failed")
	_, err = f.svc.Drop(context.Background(), detail.ID, "stu1", false, models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConsistency))
	assert.Equal(t, models.EnrollmentStatusRegistered, f.repo.status[detail.ID])
}
