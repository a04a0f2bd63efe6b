package records

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/errs"
	"github.com/carelink/carelink/pkg/pagination"
)

const (
	rolePatient   = "patient"
	roleCaregiver = "caregiver"
)

// SubjectResolver maps an authenticated subject to a profile ID and role.
type SubjectResolver interface {
	ResolveSubject(ctx context.Context, subject string) (uuid.UUID, string, error)
}

// LinkChecker reports whether a caregiver holds an active link to a patient.
type LinkChecker interface {
	HasActiveLink(ctx context.Context, caregiverID, patientID uuid.UUID) (bool, error)
}

// Service guards health records: patients own and edit their records,
// caregivers get read-only access to patients they hold an active link with.
type Service struct {
	repo     Repository
	resolver SubjectResolver
	links    LinkChecker
}

func NewService(repo Repository, resolver SubjectResolver, links LinkChecker) *Service {
	return &Service{repo: repo, resolver: resolver, links: links}
}

// resolveRead authorizes a read and returns the patient whose records are in
// scope. A patient reads their own records; a caregiver must name a patient
// they are actively linked with.
func (s *Service) resolveRead(ctx context.Context, subject string, patientID uuid.UUID) (uuid.UUID, error) {
	callerID, role, err := s.resolver.ResolveSubject(ctx, subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("caller profile: %w", err)
	}
	switch role {
	case rolePatient:
		if patientID != uuid.Nil && patientID != callerID {
			return uuid.Nil, fmt.Errorf("patients read only their own records: %w", errs.ErrUnauthorized)
		}
		return callerID, nil
	case roleCaregiver:
		if patientID == uuid.Nil {
			return uuid.Nil, fmt.Errorf("patient_id is required: %w", errs.ErrInvalidInput)
		}
		ok, err := s.links.HasActiveLink(ctx, callerID, patientID)
		if err != nil {
			return uuid.Nil, err
		}
		if !ok {
			return uuid.Nil, fmt.Errorf("no active link with this patient: %w", errs.ErrUnauthorized)
		}
		return patientID, nil
	default:
		return uuid.Nil, fmt.Errorf("profile has no role assigned: %w", errs.ErrUnauthorized)
	}
}

// resolveWrite authorizes a mutation. Only the owning patient writes;
// caregiver access is strictly read-only.
func (s *Service) resolveWrite(ctx context.Context, subject string) (uuid.UUID, error) {
	callerID, role, err := s.resolver.ResolveSubject(ctx, subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("caller profile: %w", err)
	}
	if role != rolePatient {
		return uuid.Nil, fmt.Errorf("only the patient edits their records: %w", errs.ErrUnauthorized)
	}
	return callerID, nil
}

func requireName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("name is required: %w", errs.ErrInvalidInput)
	}
	return name, nil
}

// -- Medications --

func (s *Service) CreateMedication(ctx context.Context, subject string, in MedicationInput) (*Medication, error) {
	patientID, err := s.resolveWrite(ctx, subject)
	if err != nil {
		return nil, err
	}
	name, err := requireName(in.Name)
	if err != nil {
		return nil, err
	}
	m := &Medication{
		PatientID: patientID,
		Name:      name,
		Dosage:    strings.TrimSpace(in.Dosage),
		Frequency: strings.TrimSpace(in.Frequency),
		Notes:     strings.TrimSpace(in.Notes),
	}
	if err := s.repo.CreateMedication(ctx, m); err != nil {
		return nil, errs.Classify(err)
	}
	return m, nil
}

func (s *Service) ListMedications(ctx context.Context, subject string, patientID uuid.UUID, page pagination.Params) ([]*Medication, int, error) {
	owner, err := s.resolveRead(ctx, subject, patientID)
	if err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListMedications(ctx, owner, page)
	if err != nil {
		return nil, 0, errs.Classify(err)
	}
	if items == nil {
		items = []*Medication{}
	}
	return items, total, nil
}

func (s *Service) UpdateMedication(ctx context.Context, subject string, id uuid.UUID, in MedicationInput) (*Medication, error) {
	patientID, err := s.resolveWrite(ctx, subject)
	if err != nil {
		return nil, err
	}
	name, err := requireName(in.Name)
	if err != nil {
		return nil, err
	}
	m := &Medication{
		ID:        id,
		PatientID: patientID,
		Name:      name,
		Dosage:    strings.TrimSpace(in.Dosage),
		Frequency: strings.TrimSpace(in.Frequency),
		Notes:     strings.TrimSpace(in.Notes),
	}
	if err := s.repo.UpdateMedication(ctx, m); err != nil {
		return nil, errs.Classify(err)
	}
	return m, nil
}

func (s *Service) DeleteMedication(ctx context.Context, subject string, id uuid.UUID) error {
	patientID, err := s.resolveWrite(ctx, subject)
	if err != nil {
		return err
	}
	return errs.Classify(s.repo.DeleteMedication(ctx, patientID, id))
}

// -- Doctors --

func (s *Service) CreateDoctor(ctx context.Context, subject string, in DoctorInput) (*Doctor, error) {
	patientID, err := s.resolveWrite(ctx, subject)
	if err != nil {
		return nil, err
	}
	name, err := requireName(in.Name)
	if err != nil {
		return nil, err
	}
	d := &Doctor{
		PatientID: patientID,
		Name:      name,
		Specialty: strings.TrimSpace(in.Specialty),
		Phone:     strings.TrimSpace(in.Phone),
		Address:   strings.TrimSpace(in.Address),
	}
	if err := s.repo.CreateDoctor(ctx, d); err != nil {
		return nil, errs.Classify(err)
	}
	return d, nil
}

func (s *Service) ListDoctors(ctx context.Context, subject string, patientID uuid.UUID, page pagination.Params) ([]*Doctor, int, error) {
	owner, err := s.resolveRead(ctx, subject, patientID)
	if err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListDoctors(ctx, owner, page)
	if err != nil {
		return nil, 0, errs.Classify(err)
	}
	if items == nil {
		items = []*Doctor{}
	}
	return items, total, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, subject string, id uuid.UUID, in DoctorInput) (*Doctor, error) {
	patientID, err := s.resolveWrite(ctx, subject)
	if err != nil {
		return nil, err
	}
	name, err := requireName(in.Name)
	if err != nil {
		return nil, err
	}
	d := &Doctor{
		ID:        id,
		PatientID: patientID,
		Name:      name,
		Specialty: strings.TrimSpace(in.Specialty),
		Phone:     strings.TrimSpace(in.Phone),
		Address:   strings.TrimSpace(in.Address),
	}
	if err := s.repo.UpdateDoctor(ctx, d); err != nil {
		return nil, errs.Classify(err)
	}
	return d, nil
}

func (s *Service) DeleteDoctor(ctx context.Context, subject string, id uuid.UUID) error {
	patientID, err := s.resolveWrite(ctx, subject)
	if err != nil {
		return err
	}
	return errs.Classify(s.repo.DeleteDoctor(ctx, patientID, id))
}

// -- Emergency contacts --

func (s *Service) CreateEmergencyContact(ctx context.Context, subject string, in EmergencyContactInput) (*EmergencyContact, error) {
	patientID, err := s.resolveWrite(ctx, subject)
	if err != nil {
		return nil, err
	}
	name, err := requireName(in.Name)
	if err != nil {
		return nil, err
	}
	e := &EmergencyContact{
		PatientID:    patientID,
		Name:         name,
		Relationship: strings.TrimSpace(in.Relationship),
		Phone:        strings.TrimSpace(in.Phone),
	}
	if err := s.repo.CreateEmergencyContact(ctx, e); err != nil {
		return nil, errs.Classify(err)
	}
	return e, nil
}

func (s *Service) ListEmergencyContacts(ctx context.Context, subject string, patientID uuid.UUID, page pagination.Params) ([]*EmergencyContact, int, error) {
	owner, err := s.resolveRead(ctx, subject, patientID)
	if err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListEmergencyContacts(ctx, owner, page)
	if err != nil {
		return nil, 0, errs.Classify(err)
	}
	if items == nil {
		items = []*EmergencyContact{}
	}
	return items, total, nil
}

func (s *Service) UpdateEmergencyContact(ctx context.Context, subject string, id uuid.UUID, in EmergencyContactInput) (*EmergencyContact, error) {
	patientID, err := s.resolveWrite(ctx, subject)
	if err != nil {
		return nil, err
	}
	name, err := requireName(in.Name)
	if err != nil {
		return nil, err
	}
	e := &EmergencyContact{
		ID:           id,
		PatientID:    patientID,
		Name:         name,
		Relationship: strings.TrimSpace(in.Relationship),
		Phone:        strings.TrimSpace(in.Phone),
	}
	if err := s.repo.UpdateEmergencyContact(ctx, e); err != nil {
		return nil, errs.Classify(err)
	}
	return e, nil
}

func (s *Service) DeleteEmergencyContact(ctx context.Context, subject string, id uuid.UUID) error {
	patientID, err := s.resolveWrite(ctx, subject)
	if err != nil {
		return err
	}
	return errs.Classify(s.repo.DeleteEmergencyContact(ctx, patientID, id))
}
