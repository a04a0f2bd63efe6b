package profile

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the storage contract for profiles.
type Repository interface {
	GetBySubject(ctx context.Context, subject string) (*Profile, error)
	// Ensure inserts the profile if the subject is new and returns the
	// stored row either way. Token-derived fields never overwrite values
	// the user has already edited.
	Ensure(ctx context.Context, p *Profile) error
	Update(ctx context.Context, p *Profile) error
	// SetRole commits the role once; it fails when a role is already set.
	SetRole(ctx context.Context, id uuid.UUID, role string) error
	SetOnboarded(ctx context.Context, id uuid.UUID) error
}
