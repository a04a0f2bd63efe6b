package records

import (
	"context"

	"github.com/google/uuid"

	"github.com/carelink/carelink/pkg/pagination"
)

// Repository is the storage contract for health records. List operations
// return the page and the total count for the patient.
type Repository interface {
	CreateMedication(ctx context.Context, m *Medication) error
	GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error)
	ListMedications(ctx context.Context, patientID uuid.UUID, page pagination.Params) ([]*Medication, int, error)
	UpdateMedication(ctx context.Context, m *Medication) error
	DeleteMedication(ctx context.Context, patientID, id uuid.UUID) error

	CreateDoctor(ctx context.Context, d *Doctor) error
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context, patientID uuid.UUID, page pagination.Params) ([]*Doctor, int, error)
	UpdateDoctor(ctx context.Context, d *Doctor) error
	DeleteDoctor(ctx context.Context, patientID, id uuid.UUID) error

	CreateEmergencyContact(ctx context.Context, e *EmergencyContact) error
	GetEmergencyContact(ctx context.Context, id uuid.UUID) (*EmergencyContact, error)
	ListEmergencyContacts(ctx context.Context, patientID uuid.UUID, page pagination.Params) ([]*EmergencyContact, int, error)
	UpdateEmergencyContact(ctx context.Context, e *EmergencyContact) error
	DeleteEmergencyContact(ctx context.Context, patientID, id uuid.UUID) error
}
