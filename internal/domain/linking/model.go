package linking

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// LinkStatus is the lifecycle state of a caregiver/patient link.
type LinkStatus string

const (
	// StatusPending is the initial state for any newly observed pair.
	StatusPending LinkStatus = "pending"
	// StatusActive is reached exactly when both approval flags are true.
	StatusActive LinkStatus = "active"
	// StatusInactive is the terminal revoked state.
	StatusInactive LinkStatus = "inactive"
)

// Role values mirrored from the profiles table.
const (
	RolePatient   = "patient"
	RoleCaregiver = "caregiver"
)

// Party is the narrow view of a profile row the linking directory needs:
// identity, role, and the shareable invite code.
type Party struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Subject     string    `db:"subject" json:"-"`
	Role        string    `db:"role" json:"role"`
	DisplayName string    `db:"display_name" json:"display_name"`
	InviteCode  *string   `db:"invite_code" json:"invite_code,omitempty"`
}

// AllowedCaregiverEntry maps to the allowed_caregivers table: a patient's
// pre-approval of one caregiver code. Insert and delete only, never updated.
type AllowedCaregiverEntry struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	CaregiverCode string    `db:"caregiver_code" json:"caregiver_code"`
	Nickname      string    `db:"nickname" json:"nickname"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// CaregiverPatientLink maps to the caregiver_patient_links table. The pair
// (caregiver_id, patient_id) is unique; approval flags are monotonic and the
// status moves pending -> active -> inactive, never backward.
type CaregiverPatientLink struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	CaregiverID       uuid.UUID  `db:"caregiver_id" json:"caregiver_id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientApproved   bool       `db:"patient_approved" json:"patient_approved"`
	CaregiverApproved bool       `db:"caregiver_approved" json:"caregiver_approved"`
	Status            LinkStatus `db:"status" json:"status"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// PartySummary is what one side of a link is allowed to see about the other.
type PartySummary struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Initials    string    `json:"initials"`
}

// inviteURLMarker is the path segment that precedes the code in a shareable
// invite URL (".../invite/<code>").
const inviteURLMarker = "/invite/"

// NormalizeCode canonicalizes a user-supplied invite code: whitespace is
// trimmed, a full shareable URL is reduced to the segment after the
// /invite/ marker, and the result is lower-cased. Returns ErrInvalidInput
// when nothing remains.
func NormalizeCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if i := strings.LastIndex(code, inviteURLMarker); i >= 0 {
		code = code[i+len(inviteURLMarker):]
	}
	if j := strings.IndexAny(code, "/?#"); j >= 0 {
		code = code[:j]
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "", fmt.Errorf("%w: empty invite code", ErrInvalidInput)
	}
	return code, nil
}

// ShareURL renders the shareable form of an invite code.
func ShareURL(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + inviteURLMarker + code
}

// initialsHint derives a short presentation hint from a display name. It is
// purely cosmetic; unrecognizable names fall back to the explicit unknown
// marker rather than guessing.
func initialsHint(name string) string {
	var initials []rune
	for _, field := range strings.Fields(name) {
		for _, r := range field {
			if unicode.IsLetter(r) {
				initials = append(initials, unicode.ToUpper(r))
			}
			break
		}
		if len(initials) == 2 {
			break
		}
	}
	if len(initials) == 0 {
		return "?"
	}
	return string(initials)
}

// summarize builds the minimal cross-party view of a profile.
func summarize(p *Party) PartySummary {
	return PartySummary{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Initials:    initialsHint(p.DisplayName),
	}
}
