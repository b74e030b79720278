package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Registered and waitlisted enrollments are
// "active"; dropped is terminal and never blocks re-enrollment.
const (
	EnrollmentStatusRegistered EnrollmentStatus = "REGISTERED"
	EnrollmentStatusWaitlisted EnrollmentStatus = "WAITLISTED"
	EnrollmentStatusDropped    EnrollmentStatus = "DROPPED"
)

// Active reports whether the status counts against seats, credit totals and
// the one-active-enrollment-per-section rule.
func (s EnrollmentStatus) Active() bool {
	return s == EnrollmentStatusRegistered || s == EnrollmentStatusWaitlisted
}

// Enrollment is one student's relationship to one section. Rows are never
// deleted; dropping transitions the status and keeps grade history intact.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	SectionID  string           `db:"section_id" json:"section_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	SemesterID string           `db:"semester_id" json:"semester_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	DroppedAt  *time.Time       `db:"dropped_at" json:"dropped_at,omitempty"`
	Grade      *Grade           `db:"grade" json:"grade,omitempty"`
}

// EnrollmentDetail enriches an enrollment with course and section info.
type EnrollmentDetail struct {
	Enrollment
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseName  string `db:"course_name" json:"course_name"`
	Credits     int    `db:"credits" json:"credits"`
	SectionCode string `db:"section_code" json:"section_code"`
}

// EnrollmentFilter narrows enrollment listings.
type EnrollmentFilter struct {
	StudentID  string
	SectionID  string
	SemesterID string
	Status     EnrollmentStatus
	Page       int
	PageSize   int
}

// CompletedCourse is a finished enrollment with its recorded grade, used by
// prerequisite evaluation.
type CompletedCourse struct {
	CourseID string `db:"course_id"`
	Grade    Grade  `db:"grade"`
}

// RosterEntry is one line of a section roster export.
type RosterEntry struct {
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	StudentCode  string           `db:"student_code" json:"student_code"`
	FullName     string           `db:"full_name" json:"full_name"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt   time.Time        `db:"enrolled_at" json:"enrolled_at"`
}
