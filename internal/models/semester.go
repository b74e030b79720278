package models

import "time"

// Semester is an academic term with a registration window.
type Semester struct {
	ID                string    `db:"id" json:"id"`
	Code              string    `db:"code" json:"code"`
	Year              int       `db:"year" json:"year"`
	Term              int       `db:"term" json:"term"`
	StartDate         time.Time `db:"start_date" json:"start_date"`
	EndDate           time.Time `db:"end_date" json:"end_date"`
	RegistrationStart time.Time `db:"registration_start" json:"registration_start"`
	RegistrationEnd   time.Time `db:"registration_end" json:"registration_end"`
	Active            bool      `db:"is_active" json:"is_active"`
}

// RegistrationOpenAt reports whether the registration window covers t.
func (s *Semester) RegistrationOpenAt(t time.Time) bool {
	if s == nil {
		return false
	}
	return !t.Before(s.RegistrationStart) && !t.After(s.RegistrationEnd)
}
