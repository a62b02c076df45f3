package subscriber

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/insurancepro/marketing/internal/domain"
)

// Outcome describes the result of a subscribe call.
type Outcome string

const (
	OutcomeSubscribed        Outcome = "subscribed"
	OutcomeReactivated       Outcome = "reactivated"
	OutcomeAlreadySubscribed Outcome = "already_subscribed"
)

// Service implements subscriber business logic.
// All public methods are safe for concurrent use if the underlying
// repository is concurrency-safe.
type Service struct {
	repo Repository
}

// NewService creates a subscriber service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Subscribe registers an email address. An unsubscribed subscriber is
// reactivated (name refreshed if provided); an already-active one is left
// untouched. Email syntax is validated before any state change.
func (s *Service) Subscribe(ctx context.Context, email, name, insuranceType string) (Outcome, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return "", ErrInvalidEmail
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil && err != ErrNotFound {
		return "", fmt.Errorf("lookup subscriber: %w", err)
	}

	if existing != nil {
		if existing.Status == domain.SubscriberUnsubscribed {
			if err := s.repo.UpdateStatus(ctx, email, domain.SubscriberActive, name); err != nil {
				return "", fmt.Errorf("reactivate subscriber: %w", err)
			}
			return OutcomeReactivated, nil
		}
		return OutcomeAlreadySubscribed, nil
	}

	sub := &domain.Subscriber{
		ID:            uuid.New().String(),
		Email:         email,
		Name:          name,
		InsuranceType: insuranceType,
		Status:        domain.SubscriberActive,
		SubscribedAt:  time.Now().UTC(),
	}
	if _, err := s.repo.Create(ctx, sub); err != nil {
		return "", fmt.Errorf("create subscriber: %w", err)
	}
	return OutcomeSubscribed, nil
}

// Unsubscribe sets the subscriber's status to unsubscribed.
// Callers must only pass emails recovered from a verified unsubscribe token.
func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if _, err := s.repo.GetByEmail(ctx, email); err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, email, domain.SubscriberUnsubscribed, "")
}

// MarkBounced records a permanent delivery failure for the address.
func (s *Service) MarkBounced(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if _, err := s.repo.GetByEmail(ctx, email); err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, email, domain.SubscriberBounced, "")
}

// CountActive returns the active-subscriber count for public display.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.repo.CountActive(ctx)
}

// List returns subscribers for the admin screen.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Subscriber, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	return s.repo.List(ctx, f)
}

// Resolve returns the recipient set for a campaign segment.
func (s *Service) Resolve(ctx context.Context, seg domain.Segment) ([]domain.Subscriber, error) {
	if !seg.Valid() {
		seg = domain.SegmentAll
	}
	return s.repo.ListBySegment(ctx, seg)
}

// TouchLastCampaign stamps the last-campaign-sent time after a delivery.
func (s *Service) TouchLastCampaign(ctx context.Context, id string, at time.Time) error {
	return s.repo.TouchLastCampaign(ctx, id, at)
}

// NormalizeEmail lowercases and trims an email address. Identity comparisons
// always go through this so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether the address parses as a bare RFC 5322 address.
func ValidEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// Reject display-name forms like "Bob <bob@example.com>"
	return addr.Address == email
}
