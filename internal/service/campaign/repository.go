package campaign

import (
	"context"
	"time"

	"github.com/insurancepro/marketing/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns ordered by created_at DESC plus the total count.
	List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign and returns its ID.
	Create(ctx context.Context, c *domain.Campaign) (string, error)

	// Delete removes a campaign. The service guarantees it is not sent.
	Delete(ctx context.Context, id string) error

	// UpdateStatus transitions a campaign's status.
	UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error

	// MarkSending transitions to sending and records the resolved recipient
	// count before the first delivery attempt.
	MarkSending(ctx context.Context, id string, totalRecipients int) error

	// MarkCompleted records the terminal status with final tallies and the
	// sent-at timestamp.
	MarkCompleted(ctx context.Context, id string, status domain.CampaignStatus, sent, failed int, at time.Time) error

	// SetSchedule stamps the scheduled-at time.
	SetSchedule(ctx context.Context, id string, at time.Time) error

	// DueScheduled returns campaigns in scheduled status whose scheduled_at
	// is at or before now.
	DueScheduled(ctx context.Context, now time.Time) ([]domain.Campaign, error)

	// Stats returns dashboard counters: total campaigns and sent campaigns.
	Stats(ctx context.Context) (total, sent int, err error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}
