package models

// SectionStatus reflects the seat ledger's view of a section.
type SectionStatus string

// Possible section statuses.
const (
	SectionStatusOpen   SectionStatus = "OPEN"
	SectionStatusFull   SectionStatus = "FULL"
	SectionStatusClosed SectionStatus = "CLOSED"
)

// Section is a scheduled, capacity-bounded offering of a course.
// SeatsTaken is owned exclusively by the seat ledger; everything else
// treats it as read-only.
type Section struct {
	ID         string        `db:"id" json:"id"`
	CourseID   string        `db:"course_id" json:"course_id"`
	SemesterID string        `db:"semester_id" json:"semester_id"`
	TeacherID  *string       `db:"teacher_id" json:"teacher_id,omitempty"`
	Code       string        `db:"code" json:"code"`
	Capacity   int           `db:"capacity" json:"capacity"`
	SeatsTaken int           `db:"seats_taken" json:"seats_taken"`
	Status     SectionStatus `db:"status" json:"status"`
}

// SeatsAvailable returns the number of unclaimed seats.
func (s *Section) SeatsAvailable() int {
	if s == nil {
		return 0
	}
	avail := s.Capacity - s.SeatsTaken
	if avail < 0 {
		return 0
	}
	return avail
}

// Weekday names match the reference data stored with schedule slots.
const (
	Monday    = "Monday"
	Tuesday   = "Tuesday"
	Wednesday = "Wednesday"
	Thursday  = "Thursday"
	Friday    = "Friday"
	Saturday  = "Saturday"
	Sunday    = "Sunday"
)

// ScheduleSlot is a weekly meeting time for a section. Times are minutes
// from midnight; the interval is half-open ([start, end)).
type ScheduleSlot struct {
	ID        string `db:"id" json:"id"`
	SectionID string `db:"section_id" json:"section_id"`
	DayOfWeek string `db:"day_of_week" json:"day_of_week"`
	StartMin  int    `db:"start_min" json:"start_min"`
	EndMin    int    `db:"end_min" json:"end_min"`
	Room      string `db:"room" json:"room,omitempty"`
}

// Overlaps reports whether two slots collide: same weekday and
// overlapping half-open intervals.
func (s ScheduleSlot) Overlaps(other ScheduleSlot) bool {
	if s.DayOfWeek != other.DayOfWeek {
		return false
	}
	return s.StartMin < other.EndMin && other.StartMin < s.EndMin
}
