package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole separates student, teacher and administrative accounts.
type UserRole string

// Known roles.
const (
	RoleStudent UserRole = "STUDENT"
	RoleTeacher UserRole = "TEACHER"
	RoleAdmin   UserRole = "ADMIN"
)

// User is an authenticated account.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"is_active" json:"is_active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
}

// JWTClaims carries the authenticated identity through a request.
type JWTClaims struct {
	UserID    string   `json:"uid"`
	StudentID string   `json:"sid,omitempty"`
	Role      UserRole `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims carry administrative capability.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
