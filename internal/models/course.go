package models

// Course is a unit of study offered through one or more sections.
type Course struct {
	ID           string  `db:"id" json:"id"`
	Code         string  `db:"code" json:"code"`
	Name         string  `db:"name" json:"name"`
	Credits      int     `db:"credits" json:"credits"`
	DepartmentID string  `db:"department_id" json:"department_id"`
	SemesterID   string  `db:"semester_id" json:"semester_id"`
	TeacherID    *string `db:"teacher_id" json:"teacher_id,omitempty"`
	Description  string  `db:"description" json:"description,omitempty"`
	Active       bool    `db:"is_active" json:"is_active"`
}

// Prerequisite is a reference rule: enrolling in Course requires a completed
// enrollment in RequiredCourse at or above MinGrade.
type Prerequisite struct {
	ID               string `db:"id" json:"id"`
	CourseID         string `db:"course_id" json:"course_id"`
	RequiredCourseID string `db:"required_course_id" json:"required_course_id"`
	RequiredCode     string `db:"required_code" json:"required_code"`
	MinGrade         Grade  `db:"min_grade" json:"min_grade"`
}

// CourseFilter narrows course listings.
type CourseFilter struct {
	SemesterID   string
	DepartmentID string
	Page         int
	PageSize     int
}

// CourseDetail enriches a course with its sections and prerequisite rules.
type CourseDetail struct {
	Course
	Sections      []Section      `json:"sections,omitempty"`
	Prerequisites []Prerequisite `json:"prerequisites,omitempty"`
}
