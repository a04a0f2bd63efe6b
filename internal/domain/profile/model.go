package profile

import (
	"time"

	"github.com/google/uuid"
)

// Role values a profile can take. A profile starts with no role and commits
// to one exactly once during onboarding.
const (
	RolePatient   = "patient"
	RoleCaregiver = "caregiver"
)

// Profile maps to the profiles table, one row per authenticated subject.
// An empty Role means the user has not picked a side of the app yet.
type Profile struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Subject     string     `db:"subject" json:"-"`
	Email       string     `db:"email" json:"email"`
	Role        string     `db:"role" json:"role"`
	DisplayName string     `db:"display_name" json:"display_name"`
	Phone       string     `db:"phone" json:"phone"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Onboarded   bool       `db:"onboarded" json:"onboarded"`
	InviteCode  *string    `db:"invite_code" json:"invite_code,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// UpdateInput carries the user-editable profile fields. Nil pointers leave
// the stored value unchanged.
type UpdateInput struct {
	DisplayName *string    `json:"display_name"`
	Phone       *string    `json:"phone"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

func validRole(role string) bool {
	return role == RolePatient || role == RoleCaregiver
}
