package models

import "time"

// EnrollmentAction labels an audit event.
type EnrollmentAction string

// Recorded actions.
const (
	ActionRegistered EnrollmentAction = "registered"
	ActionWaitlisted EnrollmentAction = "waitlisted"
	ActionDropped    EnrollmentAction = "dropped"
	ActionApproved   EnrollmentAction = "approved"
)

// EnrollmentEvent is an immutable audit record of one state transition.
// Events are append-only; nothing in the codebase updates or deletes them.
type EnrollmentEvent struct {
	ID           string           `db:"id" json:"id"`
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	Action       EnrollmentAction `db:"action" json:"action"`
	OccurredAt   time.Time        `db:"occurred_at" json:"occurred_at"`
	IPAddress    string           `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent    string           `db:"user_agent" json:"user_agent,omitempty"`
}

// RequestMeta carries client metadata into the audit trail.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}
