package models

// StudentStatus represents the administrative state of a student record.
type StudentStatus string

// Possible student statuses.
const (
	StudentStatusActive    StudentStatus = "ACTIVE"
	StudentStatusSuspended StudentStatus = "SUSPENDED"
	StudentStatusGraduated StudentStatus = "GRADUATED"
)

// Student holds the academic profile attached to a user account.
type Student struct {
	ID            string        `db:"id" json:"id"`
	UserID        string        `db:"user_id" json:"user_id"`
	StudentCode   string        `db:"student_code" json:"student_code"`
	MajorID       string        `db:"major_id" json:"major_id"`
	AdmissionYear int           `db:"admission_year" json:"admission_year"`
	GPA           float64       `db:"gpa" json:"gpa"`
	TotalCredits  int           `db:"total_credits" json:"total_credits"`
	Status        StudentStatus `db:"status" json:"status"`
}
