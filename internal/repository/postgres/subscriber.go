package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/insurancepro/marketing/internal/domain"
	"github.com/insurancepro/marketing/internal/service/subscriber"
)

// SubscriberRepo implements subscriber.Repository against PostgreSQL.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

const subscriberCols = `id, email, COALESCE(name,''), COALESCE(phone,''),
	       COALESCE(insurance_type,''), COALESCE(status,''), subscribed_at, last_campaign_at`

func scanSubscriber(row interface{ Scan(...interface{}) error }) (*domain.Subscriber, error) {
	s := &domain.Subscriber{}
	err := row.Scan(
		&s.ID, &s.Email, &s.Name, &s.Phone,
		&s.InsuranceType, &s.Status, &s.SubscribedAt, &s.LastCampaignAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SubscriberRepo) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	s, err := scanSubscriber(r.db.QueryRowContext(ctx, `
		SELECT `+subscriberCols+`
		FROM subscribers
		WHERE email = $1
	`, email))
	if err == sql.ErrNoRows {
		return nil, subscriber.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return s, nil
}

func (r *SubscriberRepo) Create(ctx context.Context, s *domain.Subscriber) (string, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscribers
			(id, email, name, phone, insurance_type, status, subscribed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.Email, s.Name, s.Phone, s.InsuranceType, s.Status, s.SubscribedAt)
	if err != nil {
		return "", fmt.Errorf("create subscriber: %w", err)
	}
	return s.ID, nil
}

func (r *SubscriberRepo) UpdateStatus(ctx context.Context, email string, status domain.SubscriberStatus, name string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscribers
		SET status = $1, name = CASE WHEN $2 <> '' THEN $2 ELSE name END
		WHERE email = $3
	`, status, name, email)
	if err != nil {
		return fmt.Errorf("update subscriber status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return subscriber.ErrNotFound
	}
	return nil
}

func (r *SubscriberRepo) List(ctx context.Context, f subscriber.ListFilter) ([]domain.Subscriber, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	countQ := `SELECT COUNT(*) FROM subscribers`
	args := []interface{}{}
	if f.Status != "" && f.Status != "all" {
		countQ += ` WHERE status = $1`
		args = append(args, f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count subscribers: %w", err)
	}

	q := `SELECT ` + subscriberCols + ` FROM subscribers`
	qArgs := []interface{}{}
	qIdx := 1
	if f.Status != "" && f.Status != "all" {
		q += fmt.Sprintf(" WHERE status = $%d", qIdx)
		qArgs = append(qArgs, f.Status)
		qIdx++
	}
	q += fmt.Sprintf(" ORDER BY subscribed_at DESC LIMIT $%d OFFSET $%d", qIdx, qIdx+1)
	qArgs = append(qArgs, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, *s)
	}
	return out, total, nil
}

func (r *SubscriberRepo) ListBySegment(ctx context.Context, seg domain.Segment) ([]domain.Subscriber, error) {
	q := `SELECT ` + subscriberCols + ` FROM subscribers WHERE status = 'active'`
	if seg == domain.SegmentAll {
		// Legacy rows predate the status column and count as active.
		q = `SELECT ` + subscriberCols + ` FROM subscribers
			WHERE status = 'active' OR status = '' OR status IS NULL`
	}

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list segment %s: %w", seg, err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, *s)
	}
	return out, nil
}

func (r *SubscriberRepo) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM subscribers WHERE status = 'active'
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active subscribers: %w", err)
	}
	return n, nil
}

func (r *SubscriberRepo) TouchLastCampaign(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscribers SET last_campaign_at = $1 WHERE id = $2
	`, at, id)
	if err != nil {
		return fmt.Errorf("touch last campaign: %w", err)
	}
	return nil
}
