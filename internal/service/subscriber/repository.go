package subscriber

import (
	"context"
	"time"

	"github.com/insurancepro/marketing/internal/domain"
)

// Repository defines the data access contract for subscribers.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetByEmail returns the subscriber with the given (lowercased) email.
	// Returns ErrNotFound if no such subscriber exists.
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)

	// Create inserts a new subscriber and returns its ID.
	Create(ctx context.Context, s *domain.Subscriber) (string, error)

	// UpdateStatus transitions a subscriber's status, optionally refreshing
	// the display name (empty name leaves it unchanged).
	UpdateStatus(ctx context.Context, email string, status domain.SubscriberStatus, name string) error

	// List returns subscribers matching the filter, newest first, plus the
	// total count before pagination.
	List(ctx context.Context, f ListFilter) ([]domain.Subscriber, int, error)

	// ListBySegment resolves a campaign segment to its recipient set.
	// Unsubscribed and bounced subscribers are excluded for every segment.
	ListBySegment(ctx context.Context, seg domain.Segment) ([]domain.Subscriber, error)

	// CountActive returns the number of subscribers with status = active.
	CountActive(ctx context.Context) (int, error)

	// TouchLastCampaign stamps the subscriber's last-campaign-sent time.
	TouchLastCampaign(ctx context.Context, id string, at time.Time) error
}

// ListFilter controls pagination and status filtering for subscriber lists.
type ListFilter struct {
	Status string // "", "all" = no filter
	Limit  int
	Offset int
}
