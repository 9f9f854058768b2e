package model

import "github.com/google/uuid"

// Role defines which side of the coaching pair a user is on
type Role string

const (
	RoleStudent Role = "student"
	RoleCoach   Role = "coach"
)

// User is the identity a session is established for. Profiles live in the
// main application backend; the sidecar only needs what the transport and
// the token exchange need.
type User struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
}
