package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/errs"
)

// Service owns the profile lifecycle: created on first authenticated
// request, committed to a role once, then marked onboarded.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// EnsureProfile returns the caller's profile, creating it from token claims
// on first contact. Safe to call on every request.
func (s *Service) EnsureProfile(ctx context.Context, ident auth.Identity) (*Profile, error) {
	if ident.Subject == "" {
		return nil, fmt.Errorf("missing subject: %w", errs.ErrUnauthorized)
	}
	p := &Profile{
		Subject:     ident.Subject,
		Email:       strings.TrimSpace(ident.Email),
		DisplayName: strings.TrimSpace(ident.DisplayName),
	}
	if err := s.repo.Ensure(ctx, p); err != nil {
		return nil, errs.Classify(err)
	}
	return p, nil
}

// GetBySubject fetches an existing profile without creating one.
func (s *Service) GetBySubject(ctx context.Context, subject string) (*Profile, error) {
	p, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		return nil, errs.Classify(err)
	}
	return p, nil
}

// ResolveSubject maps an authenticated subject to its profile ID and role.
// Other domains use this to authorize without depending on the full profile.
func (s *Service) ResolveSubject(ctx context.Context, subject string) (uuid.UUID, string, error) {
	p, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		return uuid.Nil, "", errs.Classify(err)
	}
	return p.ID, p.Role, nil
}

// UpdateProfile applies the user-editable fields. Nil inputs keep the
// stored value; an explicitly empty display name is rejected.
func (s *Service) UpdateProfile(ctx context.Context, subject string, in UpdateInput) (*Profile, error) {
	p, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		return nil, errs.Classify(err)
	}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			return nil, fmt.Errorf("display name cannot be empty: %w", errs.ErrInvalidInput)
		}
		p.DisplayName = name
	}
	if in.Phone != nil {
		p.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.DateOfBirth != nil {
		p.DateOfBirth = in.DateOfBirth
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, errs.Classify(err)
	}
	return p, nil
}

// SetRole commits the caller to patient or caregiver. The choice is
// permanent: repeating the same role is a no-op, switching is a conflict.
func (s *Service) SetRole(ctx context.Context, subject, role string) (*Profile, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !validRole(role) {
		return nil, fmt.Errorf("role must be %q or %q: %w", RolePatient, RoleCaregiver, errs.ErrInvalidInput)
	}
	p, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		return nil, errs.Classify(err)
	}
	if p.Role == role {
		return p, nil
	}
	if p.Role != "" {
		return nil, fmt.Errorf("role is already set to %q: %w", p.Role, errs.ErrConflict)
	}
	if err := s.repo.SetRole(ctx, p.ID, role); err != nil {
		kerr := errs.Classify(err)
		if errors.Is(kerr, errs.ErrNotFound) {
			// Lost a race with a concurrent SetRole; report what won.
			if fresh, ferr := s.repo.GetBySubject(ctx, subject); ferr == nil && fresh.Role == role {
				return fresh, nil
			}
			return nil, fmt.Errorf("role was set concurrently: %w", errs.ErrConflict)
		}
		return nil, kerr
	}
	p.Role = role
	return p, nil
}

// CompleteOnboarding flips the onboarded flag. Requires a committed role so
// the client cannot skip the role step.
func (s *Service) CompleteOnboarding(ctx context.Context, subject string) (*Profile, error) {
	p, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		return nil, errs.Classify(err)
	}
	if p.Role == "" {
		return nil, fmt.Errorf("pick a role before completing onboarding: %w", errs.ErrInvalidInput)
	}
	if p.Onboarded {
		return p, nil
	}
	if err := s.repo.SetOnboarded(ctx, p.ID); err != nil {
		return nil, errs.Classify(err)
	}
	p.Onboarded = true
	return p, nil
}
