package linking

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/db"
)

// TxRunner runs fn inside one storage transaction. The default runner is a
// pass-through for unit tests; the server wires db.WithTx so the two-way
// precondition check and the link write share a snapshot.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

const defaultCodeRetries = 5

// Service implements the invite/link verification protocol between patient
// and caregiver profiles.
type Service struct {
	parties        PartyRepository
	dir            DirectoryRepository
	inTx           TxRunner
	maxCodeRetries int
}

func NewService(parties PartyRepository, dir DirectoryRepository) *Service {
	return &Service{
		parties:        parties,
		dir:            dir,
		inTx:           func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) },
		maxCodeRetries: defaultCodeRetries,
	}
}

// SetTxRunner attaches the transaction runner used for link mutations.
func (s *Service) SetTxRunner(run TxRunner) {
	s.inTx = run
}

// SetMaxCodeRetries overrides the bounded retry count for invite code
// generation collisions.
func (s *Service) SetMaxCodeRetries(n int) {
	if n > 0 {
		s.maxCodeRetries = n
	}
}

// GenerateCaregiverCode returns the caller's shareable invite code, deriving
// and persisting one on first call. The operation is idempotent: an existing
// code is returned unchanged. Collisions on the global uniqueness constraint
// are retried with fresh random suffixes before surfacing ErrConflict.
func (s *Service) GenerateCaregiverCode(ctx context.Context, subject string) (string, error) {
	p, err := s.parties.GetBySubject(ctx, subject)
	if err != nil {
		return "", fmt.Errorf("caller profile: %w", classify(err))
	}
	if p.InviteCode != nil && *p.InviteCode != "" {
		return *p.InviteCode, nil
	}

	frag := codeFragment(p.DisplayName)
	for i := 0; i < s.maxCodeRetries; i++ {
		suffix, err := randomSuffix()
		if err != nil {
			return "", fmt.Errorf("derive code suffix: %w", err)
		}
		code := frag + "-" + suffix

		setErr := s.parties.SetInviteCode(ctx, p.ID, code)
		if setErr == nil {
			return code, nil
		}
		kerr := classify(setErr)
		if errors.Is(kerr, ErrConflict) {
			// Another profile holds this code; try a new suffix.
			continue
		}
		if errors.Is(kerr, ErrNotFound) {
			// Lost a race with a concurrent call for the same profile;
			// return whatever code won.
			fresh, ferr := s.parties.GetBySubject(ctx, subject)
			if ferr == nil && fresh.InviteCode != nil && *fresh.InviteCode != "" {
				return *fresh.InviteCode, nil
			}
		}
		return "", kerr
	}
	return "", fmt.Errorf("invite code space exhausted after %d attempts: %w", s.maxCodeRetries, ErrConflict)
}

// FindPatientByInviteCode resolves a caregiver-supplied code (bare or inside
// a shareable URL) to a minimal patient summary. Read-only: no linking
// directory row is created or modified, since the caregiver has not yet been
// authorized by the patient.
func (s *Service) FindPatientByInviteCode(ctx context.Context, raw string) (*PartySummary, error) {
	code, err := NormalizeCode(raw)
	if err != nil {
		return nil, err
	}

	p, err := s.parties.GetByInviteCode(ctx, code)
	if err != nil {
		kerr := classify(err)
		if errors.Is(kerr, ErrNotFound) {
			return nil, fmt.Errorf("invalid invite code: %w", ErrNotFound)
		}
		return nil, kerr
	}
	if p.Role != RolePatient {
		// Caregiver codes resolve through the allow-list, never here.
		return nil, fmt.Errorf("invalid invite code: %w", ErrNotFound)
	}
	sum := summarize(p)
	return &sum, nil
}

// LinkPatientToCaregiverTwoWay performs the two-way verification protocol:
// the caller proves intent by knowing the patient's code, and the patient
// must have proven consent beforehand by allow-listing the caller's code.
// The allow-list check and the link upsert run in one transaction so a
// revocation between check and write cannot slip through. Idempotent: an
// already-active pair stays active with a single row.
func (s *Service) LinkPatientToCaregiverTwoWay(ctx context.Context, subject, patientInviteCode string) (*CaregiverPatientLink, error) {
	caller, err := s.parties.GetBySubject(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("caller profile: %w", classify(err))
	}
	if caller.Role != RoleCaregiver {
		return nil, fmt.Errorf("only caregivers can link to a patient: %w", ErrUnauthorized)
	}

	code, err := NormalizeCode(patientInviteCode)
	if err != nil {
		return nil, err
	}
	patient, err := s.parties.GetByInviteCode(ctx, code)
	if err != nil {
		kerr := classify(err)
		if errors.Is(kerr, ErrNotFound) {
			return nil, fmt.Errorf("invalid invite code: %w", ErrNotFound)
		}
		return nil, kerr
	}
	if patient.Role != RolePatient {
		return nil, fmt.Errorf("invalid invite code: %w", ErrNotFound)
	}

	if caller.InviteCode == nil || *caller.InviteCode == "" {
		// Without a code of their own the caller cannot appear on any
		// allow-list.
		return nil, fmt.Errorf("patient has not approved this caregiver: %w", ErrUnauthorized)
	}

	var link *CaregiverPatientLink
	err = s.inTx(ctx, func(ctx context.Context) error {
		ctx = db.WithElevated(ctx)

		if _, err := s.dir.FindAllowedCaregiver(ctx, patient.ID, *caller.InviteCode); err != nil {
			kerr := classify(err)
			if errors.Is(kerr, ErrNotFound) {
				return fmt.Errorf("patient has not approved this caregiver: %w", ErrUnauthorized)
			}
			return kerr
		}

		existing, err := s.dir.GetLink(ctx, caller.ID, patient.ID)
		if err == nil && existing.Status == StatusInactive {
			return fmt.Errorf("link has been revoked: %w", ErrConflict)
		}
		if err != nil && !errors.Is(classify(err), ErrNotFound) {
			return classify(err)
		}

		// The patient's earlier allow-list entry counts as patient approval,
		// so both flags go true in the same logical transaction.
		l := &CaregiverPatientLink{
			CaregiverID:       caller.ID,
			PatientID:         patient.ID,
			CaregiverApproved: true,
			PatientApproved:   true,
			Status:            StatusActive,
		}
		if err := s.dir.UpsertLink(ctx, l); err != nil {
			return classify(err)
		}
		link = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// GetLinkedPatients returns summaries of every patient actively linked to
// the caller as caregiver. An empty result is not an error.
func (s *Service) GetLinkedPatients(ctx context.Context, subject string) ([]PartySummary, error) {
	caller, err := s.parties.GetBySubject(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("caller profile: %w", classify(err))
	}
	links, err := s.dir.ListActiveByCaregiver(ctx, caller.ID)
	if err != nil {
		return nil, classify(err)
	}
	return s.summarizeParties(ctx, links, func(l *CaregiverPatientLink) uuid.UUID { return l.PatientID })
}

// GetLinkedCaregivers is the patient-side view of active links.
func (s *Service) GetLinkedCaregivers(ctx context.Context, subject string) ([]PartySummary, error) {
	caller, err := s.parties.GetBySubject(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("caller profile: %w", classify(err))
	}
	links, err := s.dir.ListActiveByPatient(ctx, caller.ID)
	if err != nil {
		return nil, classify(err)
	}
	return s.summarizeParties(ctx, links, func(l *CaregiverPatientLink) uuid.UUID { return l.CaregiverID })
}

func (s *Service) summarizeParties(ctx context.Context, links []*CaregiverPatientLink, pick func(*CaregiverPatientLink) uuid.UUID) ([]PartySummary, error) {
	summaries := make([]PartySummary, 0, len(links))
	for _, l := range links {
		p, err := s.parties.GetByID(ctx, pick(l))
		if err != nil {
			return nil, classify(err)
		}
		summaries = append(summaries, summarize(p))
	}
	return summaries, nil
}

// AddAllowedCaregiver records the patient's pre-approval of a caregiver
// code. Approving the same code twice fails with ErrConflict.
func (s *Service) AddAllowedCaregiver(ctx context.Context, subject, caregiverCode, nickname string) (*AllowedCaregiverEntry, error) {
	caller, err := s.parties.GetBySubject(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("caller profile: %w", classify(err))
	}
	if caller.Role != RolePatient {
		return nil, fmt.Errorf("only patients manage the caregiver allow-list: %w", ErrUnauthorized)
	}
	code, err := NormalizeCode(caregiverCode)
	if err != nil {
		return nil, err
	}
	e := &AllowedCaregiverEntry{
		PatientID:     caller.ID,
		CaregiverCode: code,
		Nickname:      strings.TrimSpace(nickname),
	}
	if err := s.dir.AddAllowedCaregiver(ctx, e); err != nil {
		kerr := classify(err)
		if errors.Is(kerr, ErrConflict) {
			return nil, fmt.Errorf("caregiver code already approved: %w", ErrConflict)
		}
		return nil, kerr
	}
	return e, nil
}

// ListAllowedCaregivers returns the caller's allow-list entries.
func (s *Service) ListAllowedCaregivers(ctx context.Context, subject string) ([]*AllowedCaregiverEntry, error) {
	caller, err := s.parties.GetBySubject(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("caller profile: %w", classify(err))
	}
	entries, err := s.dir.ListAllowedCaregivers(ctx, caller.ID)
	if err != nil {
		return nil, classify(err)
	}
	if entries == nil {
		entries = []*AllowedCaregiverEntry{}
	}
	return entries, nil
}

// RemoveAllowedCaregiver deletes an allow-list entry, un-approving the code
// for future link attempts. Existing links are untouched; revocation of an
// established link is explicit via RevokeLink.
func (s *Service) RemoveAllowedCaregiver(ctx context.Context, subject string, entryID uuid.UUID) error {
	caller, err := s.parties.GetBySubject(ctx, subject)
	if err != nil {
		return fmt.Errorf("caller profile: %w", classify(err))
	}
	if err := s.dir.RemoveAllowedCaregiver(ctx, caller.ID, entryID); err != nil {
		return classify(err)
	}
	return nil
}

// RevokeLink moves the link between the caller and the other party to the
// terminal inactive state. Either side may revoke. Revoking an already
// inactive link is a no-op.
func (s *Service) RevokeLink(ctx context.Context, subject string, otherPartyID uuid.UUID) error {
	caller, err := s.parties.GetBySubject(ctx, subject)
	if err != nil {
		return fmt.Errorf("caller profile: %w", classify(err))
	}

	var caregiverID, patientID uuid.UUID
	switch caller.Role {
	case RolePatient:
		caregiverID, patientID = otherPartyID, caller.ID
	case RoleCaregiver:
		caregiverID, patientID = caller.ID, otherPartyID
	default:
		return fmt.Errorf("profile has no role assigned: %w", ErrUnauthorized)
	}

	return s.inTx(ctx, func(ctx context.Context) error {
		ctx = db.WithElevated(ctx)

		existing, err := s.dir.GetLink(ctx, caregiverID, patientID)
		if err != nil {
			kerr := classify(err)
			if errors.Is(kerr, ErrNotFound) {
				return fmt.Errorf("no link with this party: %w", ErrNotFound)
			}
			return kerr
		}
		if existing.Status == StatusInactive {
			return nil
		}
		if err := s.dir.SetLinkStatus(ctx, caregiverID, patientID, StatusInactive); err != nil {
			return classify(err)
		}
		return nil
	})
}

// HasActiveLink reports whether the caregiver holds an active link to the
// patient. Used by record access checks.
func (s *Service) HasActiveLink(ctx context.Context, caregiverID, patientID uuid.UUID) (bool, error) {
	l, err := s.dir.GetLink(ctx, caregiverID, patientID)
	if err != nil {
		kerr := classify(err)
		if errors.Is(kerr, ErrNotFound) {
			return false, nil
		}
		return false, kerr
	}
	return l.Status == StatusActive, nil
}

// codeFragment derives the human-readable part of an invite code from a
// display name: lower-case letters of the first name, "care" when nothing
// usable remains.
func codeFragment(displayName string) string {
	fields := strings.Fields(strings.ToLower(displayName))
	if len(fields) == 0 {
		return "care"
	}
	var b strings.Builder
	for _, r := range fields[0] {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
		if b.Len() >= 12 {
			break
		}
	}
	if b.Len() == 0 {
		return "care"
	}
	return b.String()
}

// randomSuffix returns four random decimal digits.
func randomSuffix() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
