package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/insurancepro/marketing/internal/domain"
	"github.com/insurancepro/marketing/internal/service/contact"
)

// ContactRepo implements contact.Repository against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact message repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

func (r *ContactRepo) Create(ctx context.Context, m *domain.ContactMessage) (string, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contact_messages
			(id, name, email, phone, subject, message, created_at, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)
	`, m.ID, m.Name, m.Email, m.Phone, m.Subject, m.Message, m.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("create contact message: %w", err)
	}
	return m.ID, nil
}

func (r *ContactRepo) List(ctx context.Context, limit, offset int) ([]domain.ContactMessage, int, error) {
	if limit <= 0 {
		limit = 20
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contact_messages`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contact messages: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, COALESCE(phone,''), subject, message, created_at, is_read
		FROM contact_messages
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list contact messages: %w", err)
	}
	defer rows.Close()

	var out []domain.ContactMessage
	for rows.Next() {
		var m domain.ContactMessage
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Email, &m.Phone, &m.Subject, &m.Message, &m.CreatedAt, &m.IsRead,
		); err != nil {
			return nil, 0, fmt.Errorf("scan contact message: %w", err)
		}
		out = append(out, m)
	}
	return out, total, nil
}

func (r *ContactRepo) MarkRead(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contact_messages SET is_read = true WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark contact message read: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) CountUnread(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM contact_messages WHERE is_read = false
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return n, nil
}
