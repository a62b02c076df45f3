package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/insurancepro/marketing/internal/domain"
	"github.com/insurancepro/marketing/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignCols = `id, name, subject, content, template, segment, status,
	       total_recipients, sent_count, failed_count, opened_count,
	       created_at, scheduled_at, sent_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := row.Scan(
		&c.ID, &c.Name, &c.Subject, &c.Content, &c.Template, &c.Segment, &c.Status,
		&c.TotalRecipients, &c.SentCount, &c.FailedCount, &c.OpenedCount,
		&c.CreatedAt, &c.ScheduledAt, &c.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx, `
		SELECT `+campaignCols+`
		FROM campaigns
		WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	countQ := `SELECT COUNT(*) FROM campaigns`
	args := []interface{}{}
	if f.Status != "" {
		countQ += ` WHERE status = $1`
		args = append(args, f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignCols + ` FROM campaigns`
	qArgs := []interface{}{}
	qIdx := 1
	if f.Status != "" {
		q += fmt.Sprintf(" WHERE status = $%d", qIdx)
		qArgs = append(qArgs, f.Status)
		qIdx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", qIdx, qIdx+1)
	qArgs = append(qArgs, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, nil
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, name, subject, content, template, segment, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Name, c.Subject, c.Content, c.Template, c.Segment, c.Status, c.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	return c.ID, nil
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM campaigns WHERE id = $1 AND status <> 'sent'
	`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1 WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// MarkSending transitions a campaign to sending. Only 'sent' is refused:
// a campaign stranded in 'sending' by a crashed worker, or left in
// 'failed', must stay re-dispatchable.
func (r *CampaignRepo) MarkSending(ctx context.Context, id string, totalRecipients int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'sending', total_recipients = $1
		WHERE id = $2 AND status <> 'sent'
	`, totalRecipients, id)
	if err != nil {
		return fmt.Errorf("mark sending: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotSendable
	}
	return nil
}

func (r *CampaignRepo) MarkCompleted(ctx context.Context, id string, status domain.CampaignStatus, sent, failed int, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = $1, sent_count = $2, failed_count = $3, sent_at = $4
		WHERE id = $5
	`, status, sent, failed, at, id)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) SetSchedule(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'scheduled', scheduled_at = $1
		WHERE id = $2 AND status IN ('draft','scheduled')
	`, at, id)
	if err != nil {
		return fmt.Errorf("set schedule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotSendable
	}
	return nil
}

func (r *CampaignRepo) DueScheduled(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignCols+`
		FROM campaigns
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
	`, now)
	if err != nil {
		return nil, fmt.Errorf("due scheduled: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *CampaignRepo) Stats(ctx context.Context) (total, sent int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'sent') FROM campaigns
	`).Scan(&total, &sent)
	if err != nil {
		return 0, 0, fmt.Errorf("campaign stats: %w", err)
	}
	return total, sent, nil
}
