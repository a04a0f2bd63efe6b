package linking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// -- Party repository (profiles table, linking view) --

type partyRepoPG struct{ pool *pgxpool.Pool }

func NewPartyRepoPG(pool *pgxpool.Pool) PartyRepository {
	return &partyRepoPG{pool: pool}
}

func (r *partyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const partyCols = `id, subject, role, display_name, invite_code`

func scanParty(row pgx.Row) (*Party, error) {
	var p Party
	err := row.Scan(&p.ID, &p.Subject, &p.Role, &p.DisplayName, &p.InviteCode)
	return &p, err
}

func (r *partyRepoPG) GetBySubject(ctx context.Context, subject string) (*Party, error) {
	return scanParty(r.conn(ctx).QueryRow(ctx,
		`SELECT `+partyCols+` FROM profiles WHERE subject = $1`, subject))
}

func (r *partyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Party, error) {
	return scanParty(r.conn(ctx).QueryRow(ctx,
		`SELECT `+partyCols+` FROM profiles WHERE id = $1`, id))
}

func (r *partyRepoPG) GetByInviteCode(ctx context.Context, code string) (*Party, error) {
	return scanParty(r.conn(ctx).QueryRow(ctx,
		`SELECT `+partyCols+` FROM profiles WHERE invite_code = $1`, code))
}

func (r *partyRepoPG) SetInviteCode(ctx context.Context, id uuid.UUID, code string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE profiles SET invite_code = $2, updated_at = NOW() WHERE id = $1 AND invite_code IS NULL`,
		id, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s already has an invite code or does not exist: %w", id, pgx.ErrNoRows)
	}
	return nil
}

// -- Directory repository (allowed_caregivers, caregiver_patient_links) --

type directoryRepoPG struct{ pool *pgxpool.Pool }

func NewDirectoryRepoPG(pool *pgxpool.Pool) DirectoryRepository {
	return &directoryRepoPG{pool: pool}
}

func (r *directoryRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// guardElevated rejects link mutations that did not come through the
// service's elevated execution context. Reads stay access-controlled by the
// store itself; only the verification protocol may write link state.
func guardElevated(ctx context.Context) error {
	if !db.IsElevated(ctx) {
		return errors.New("link mutation outside elevated context")
	}
	return nil
}

func (r *directoryRepoPG) AddAllowedCaregiver(ctx context.Context, e *AllowedCaregiverEntry) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO allowed_caregivers (id, patient_id, caregiver_code, nickname)
		VALUES ($1, $2, $3, $4)`,
		e.ID, e.PatientID, e.CaregiverCode, e.Nickname)
	return err
}

func (r *directoryRepoPG) ListAllowedCaregivers(ctx context.Context, patientID uuid.UUID) ([]*AllowedCaregiverEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, caregiver_code, nickname, created_at
		FROM allowed_caregivers WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*AllowedCaregiverEntry
	for rows.Next() {
		var e AllowedCaregiverEntry
		if err := rows.Scan(&e.ID, &e.PatientID, &e.CaregiverCode, &e.Nickname, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}

func (r *directoryRepoPG) RemoveAllowedCaregiver(ctx context.Context, patientID, entryID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM allowed_caregivers WHERE id = $1 AND patient_id = $2`, entryID, patientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *directoryRepoPG) FindAllowedCaregiver(ctx context.Context, patientID uuid.UUID, caregiverCode string) (*AllowedCaregiverEntry, error) {
	var e AllowedCaregiverEntry
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, caregiver_code, nickname, created_at
		FROM allowed_caregivers WHERE patient_id = $1 AND LOWER(caregiver_code) = LOWER($2)`,
		patientID, caregiverCode).
		Scan(&e.ID, &e.PatientID, &e.CaregiverCode, &e.Nickname, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const linkCols = `id, caregiver_id, patient_id, patient_approved, caregiver_approved, status, created_at, updated_at`

func scanLink(row pgx.Row) (*CaregiverPatientLink, error) {
	var l CaregiverPatientLink
	err := row.Scan(&l.ID, &l.CaregiverID, &l.PatientID, &l.PatientApproved,
		&l.CaregiverApproved, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	return &l, err
}

func (r *directoryRepoPG) GetLink(ctx context.Context, caregiverID, patientID uuid.UUID) (*CaregiverPatientLink, error) {
	return scanLink(r.conn(ctx).QueryRow(ctx,
		`SELECT `+linkCols+` FROM caregiver_patient_links WHERE caregiver_id = $1 AND patient_id = $2`,
		caregiverID, patientID))
}

func (r *directoryRepoPG) UpsertLink(ctx context.Context, link *CaregiverPatientLink) error {
	if err := guardElevated(ctx); err != nil {
		return err
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	// Flags merge with OR and status is recomputed in the same statement.
	// The unique constraint on the pair serializes concurrent callers; a
	// revoked link stays inactive no matter what arrives.
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO caregiver_patient_links
			(id, caregiver_id, patient_id, patient_approved, caregiver_approved, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (caregiver_id, patient_id) DO UPDATE SET
			patient_approved   = caregiver_patient_links.patient_approved OR EXCLUDED.patient_approved,
			caregiver_approved = caregiver_patient_links.caregiver_approved OR EXCLUDED.caregiver_approved,
			status = CASE
				WHEN caregiver_patient_links.status = 'inactive' THEN 'inactive'
				WHEN (caregiver_patient_links.patient_approved OR EXCLUDED.patient_approved)
				 AND (caregiver_patient_links.caregiver_approved OR EXCLUDED.caregiver_approved) THEN 'active'
				ELSE 'pending'
			END,
			updated_at = NOW()
		RETURNING `+linkCols,
		link.ID, link.CaregiverID, link.PatientID,
		link.PatientApproved, link.CaregiverApproved, link.Status)

	merged, err := scanLink(row)
	if err != nil {
		return err
	}
	*link = *merged
	return nil
}

func (r *directoryRepoPG) SetLinkStatus(ctx context.Context, caregiverID, patientID uuid.UUID, status LinkStatus) error {
	if err := guardElevated(ctx); err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE caregiver_patient_links SET status = $3, updated_at = NOW()
		WHERE caregiver_id = $1 AND patient_id = $2`,
		caregiverID, patientID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *directoryRepoPG) listActive(ctx context.Context, column string, id uuid.UUID) ([]*CaregiverPatientLink, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+linkCols+` FROM caregiver_patient_links WHERE `+column+` = $1 AND status = 'active' ORDER BY created_at`,
		id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*CaregiverPatientLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

func (r *directoryRepoPG) ListActiveByCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]*CaregiverPatientLink, error) {
	return r.listActive(ctx, "caregiver_id", caregiverID)
}

func (r *directoryRepoPG) ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*CaregiverPatientLink, error) {
	return r.listActive(ctx, "patient_id", patientID)
}
