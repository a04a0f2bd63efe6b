package linking

import (
	"context"

	"github.com/google/uuid"
)

// PartyRepository is the linking service's narrow view of the profile store.
type PartyRepository interface {
	GetBySubject(ctx context.Context, subject string) (*Party, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Party, error)
	GetByInviteCode(ctx context.Context, code string) (*Party, error)
	// SetInviteCode persists a newly generated code; the unique constraint on
	// invite_code is the collision detector.
	SetInviteCode(ctx context.Context, id uuid.UUID, code string) error
}

// DirectoryRepository persists allow-list entries and link rows.
type DirectoryRepository interface {
	AddAllowedCaregiver(ctx context.Context, e *AllowedCaregiverEntry) error
	ListAllowedCaregivers(ctx context.Context, patientID uuid.UUID) ([]*AllowedCaregiverEntry, error)
	RemoveAllowedCaregiver(ctx context.Context, patientID, entryID uuid.UUID) error
	FindAllowedCaregiver(ctx context.Context, patientID uuid.UUID, caregiverCode string) (*AllowedCaregiverEntry, error)

	GetLink(ctx context.Context, caregiverID, patientID uuid.UUID) (*CaregiverPatientLink, error)
	// UpsertLink inserts or merges a link row for the pair. Approval flags
	// merge monotonically (OR) and status is recomputed in the same
	// statement, so concurrent approvals converge instead of clobbering.
	UpsertLink(ctx context.Context, link *CaregiverPatientLink) error
	SetLinkStatus(ctx context.Context, caregiverID, patientID uuid.UUID, status LinkStatus) error
	ListActiveByCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]*CaregiverPatientLink, error)
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*CaregiverPatientLink, error)
}
