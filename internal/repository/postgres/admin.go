package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/insurancepro/marketing/internal/auth"
	"github.com/insurancepro/marketing/internal/domain"
)

// AdminRepo implements auth.AdminStore against PostgreSQL.
type AdminRepo struct{ db *sql.DB }

// NewAdminRepo creates a Postgres-backed admin account repository.
func NewAdminRepo(db *sql.DB) *AdminRepo { return &AdminRepo{db: db} }

func (r *AdminRepo) GetByUsername(ctx context.Context, username string) (*domain.Admin, error) {
	a := &domain.Admin{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, COALESCE(email,''), password_hash, is_active, last_login_at, created_at
		FROM admins
		WHERE username = $1
	`, username).Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.IsActive, &a.LastLoginAt, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, auth.ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return a, nil
}

func (r *AdminRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE admins SET last_login_at = $1 WHERE id = $2
	`, at, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}
