package records

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/db"
	"github.com/carelink/carelink/pkg/pagination"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) count(ctx context.Context, table string, patientID uuid.UUID) (int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE patient_id = $1`, patientID).Scan(&total)
	return total, err
}

func (r *repoPG) deleteOwned(ctx context.Context, table string, patientID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM `+table+` WHERE id = $1 AND patient_id = $2`, id, patientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// -- Medications --

const medicationCols = `id, patient_id, name, dosage, frequency, notes, created_at, updated_at`

func scanMedication(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.PatientID, &m.Name, &m.Dosage, &m.Frequency, &m.Notes,
		&m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *repoPG) CreateMedication(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medications (id, patient_id, name, dosage, frequency, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+medicationCols,
		m.ID, m.PatientID, m.Name, m.Dosage, m.Frequency, m.Notes)
	stored, err := scanMedication(row)
	if err != nil {
		return err
	}
	*m = *stored
	return nil
}

func (r *repoPG) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return scanMedication(r.conn(ctx).QueryRow(ctx,
		`SELECT `+medicationCols+` FROM medications WHERE id = $1`, id))
}

func (r *repoPG) ListMedications(ctx context.Context, patientID uuid.UUID, page pagination.Params) ([]*Medication, int, error) {
	total, err := r.count(ctx, "medications", patientID)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+medicationCols+` FROM medications WHERE patient_id = $1 ORDER BY created_at DESC `+page.SQL(),
		patientID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateMedication(ctx context.Context, m *Medication) error {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE medications
		SET name = $3, dosage = $4, frequency = $5, notes = $6, updated_at = NOW()
		WHERE id = $1 AND patient_id = $2
		RETURNING `+medicationCols,
		m.ID, m.PatientID, m.Name, m.Dosage, m.Frequency, m.Notes)
	stored, err := scanMedication(row)
	if err != nil {
		return err
	}
	*m = *stored
	return nil
}

func (r *repoPG) DeleteMedication(ctx context.Context, patientID, id uuid.UUID) error {
	return r.deleteOwned(ctx, "medications", patientID, id)
}

// -- Doctors --

const doctorCols = `id, patient_id, name, specialty, phone, address, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.PatientID, &d.Name, &d.Specialty, &d.Phone, &d.Address,
		&d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *repoPG) CreateDoctor(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (id, patient_id, name, specialty, phone, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+doctorCols,
		d.ID, d.PatientID, d.Name, d.Specialty, d.Phone, d.Address)
	stored, err := scanDoctor(row)
	if err != nil {
		return err
	}
	*d = *stored
	return nil
}

func (r *repoPG) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (r *repoPG) ListDoctors(ctx context.Context, patientID uuid.UUID, page pagination.Params) ([]*Doctor, int, error) {
	total, err := r.count(ctx, "doctors", patientID)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+doctorCols+` FROM doctors WHERE patient_id = $1 ORDER BY name `+page.SQL(),
		patientID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateDoctor(ctx context.Context, d *Doctor) error {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctors
		SET name = $3, specialty = $4, phone = $5, address = $6, updated_at = NOW()
		WHERE id = $1 AND patient_id = $2
		RETURNING `+doctorCols,
		d.ID, d.PatientID, d.Name, d.Specialty, d.Phone, d.Address)
	stored, err := scanDoctor(row)
	if err != nil {
		return err
	}
	*d = *stored
	return nil
}

func (r *repoPG) DeleteDoctor(ctx context.Context, patientID, id uuid.UUID) error {
	return r.deleteOwned(ctx, "doctors", patientID, id)
}

// -- Emergency contacts --

const contactCols = `id, patient_id, name, relationship, phone, created_at, updated_at`

func scanContact(row pgx.Row) (*EmergencyContact, error) {
	var e EmergencyContact
	err := row.Scan(&e.ID, &e.PatientID, &e.Name, &e.Relationship, &e.Phone,
		&e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

func (r *repoPG) CreateEmergencyContact(ctx context.Context, e *EmergencyContact) error {
	e.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO emergency_contacts (id, patient_id, name, relationship, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+contactCols,
		e.ID, e.PatientID, e.Name, e.Relationship, e.Phone)
	stored, err := scanContact(row)
	if err != nil {
		return err
	}
	*e = *stored
	return nil
}

func (r *repoPG) GetEmergencyContact(ctx context.Context, id uuid.UUID) (*EmergencyContact, error) {
	return scanContact(r.conn(ctx).QueryRow(ctx,
		`SELECT `+contactCols+` FROM emergency_contacts WHERE id = $1`, id))
}

func (r *repoPG) ListEmergencyContacts(ctx context.Context, patientID uuid.UUID, page pagination.Params) ([]*EmergencyContact, int, error) {
	total, err := r.count(ctx, "emergency_contacts", patientID)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+contactCols+` FROM emergency_contacts WHERE patient_id = $1 ORDER BY name `+page.SQL(),
		patientID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*EmergencyContact
	for rows.Next() {
		e, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateEmergencyContact(ctx context.Context, e *EmergencyContact) error {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE emergency_contacts
		SET name = $3, relationship = $4, phone = $5, updated_at = NOW()
		WHERE id = $1 AND patient_id = $2
		RETURNING `+contactCols,
		e.ID, e.PatientID, e.Name, e.Relationship, e.Phone)
	stored, err := scanContact(row)
	if err != nil {
		return err
	}
	*e = *stored
	return nil
}

func (r *repoPG) DeleteEmergencyContact(ctx context.Context, patientID, id uuid.UUID) error {
	return r.deleteOwned(ctx, "emergency_contacts", patientID, id)
}
