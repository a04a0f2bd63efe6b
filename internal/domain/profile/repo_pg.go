package profile

import (
	"context"
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

const profileCols = `id, subject, email, role, display_name, phone, date_of_birth, onboarded, invite_code, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Subject, &p.Email, &p.Role, &p.DisplayName, &p.Phone,
		&p.DateOfBirth, &p.Onboarded, &p.InviteCode, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) GetBySubject(ctx context.Context, subject string) (*Profile, error) {
	return scanProfile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE subject = $1`, subject))
}

func (r *repoPG) Ensure(ctx context.Context, p *Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	// Token claims only fill gaps: email refreshes when the token carries
	// one, display_name is taken only while the stored one is still empty.
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO profiles (id, subject, email, display_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject) DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), profiles.email),
			display_name = CASE WHEN profiles.display_name = '' THEN EXCLUDED.display_name ELSE profiles.display_name END,
			updated_at = NOW()
		RETURNING `+profileCols,
		p.ID, p.Subject, p.Email, p.DisplayName)

	stored, err := scanProfile(row)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

func (r *repoPG) Update(ctx context.Context, p *Profile) error {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE profiles
		SET display_name = $2, phone = $3, date_of_birth = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+profileCols,
		p.ID, p.DisplayName, p.Phone, p.DateOfBirth)

	stored, err := scanProfile(row)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

func (r *repoPG) SetRole(ctx context.Context, id uuid.UUID, role string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE profiles SET role = $2, updated_at = NOW() WHERE id = $1 AND role = ''`,
		id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s already has a role or does not exist: %w", id, pgx.ErrNoRows)
	}
	return nil
}

func (r *repoPG) SetOnboarded(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE profiles SET onboarded = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
