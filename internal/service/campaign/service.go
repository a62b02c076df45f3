package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/insurancepro/marketing/internal/domain"
)

// Service implements campaign business logic. It coordinates between the
// repository layer and the guards around the campaign lifecycle.
// All public methods are safe for concurrent use if the underlying
// repository is concurrency-safe.
type Service struct {
	repo Repository
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	return s.repo.List(ctx, f)
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name     string `json:"name"`
	Subject  string `json:"subject"`
	Content  string `json:"content"`
	Template string `json:"template"`
	Segment  string `json:"segment"`
}

// Create validates and persists a new campaign in draft status.
// Unknown template variants and segments fall back to their defaults.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if input.Subject == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if input.Content == "" {
		return nil, fmt.Errorf("content is required")
	}

	tmpl := domain.Template(input.Template)
	switch tmpl {
	case domain.TemplateDefault, domain.TemplatePromotional, domain.TemplateNewsletter:
	default:
		tmpl = domain.TemplateDefault
	}

	seg := domain.Segment(input.Segment)
	if !seg.Valid() {
		seg = domain.SegmentAll
	}

	c := &domain.Campaign{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Subject:   input.Subject,
		Content:   input.Content,
		Template:  tmpl,
		Segment:   seg,
		Status:    domain.CampaignDraft,
		CreatedAt: time.Now().UTC(),
	}

	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

// Delete removes a campaign. Sent campaigns are immutable and refuse deletion.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == domain.CampaignSent {
		return ErrImmutable
	}
	return s.repo.Delete(ctx, id)
}

// Schedule moves a draft campaign to scheduled for a future send time.
func (s *Service) Schedule(ctx context.Context, id string, at time.Time) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignDraft && c.Status != domain.CampaignScheduled {
		return ErrNotSendable
	}
	if !at.After(time.Now()) {
		return fmt.Errorf("scheduled time must be in the future")
	}
	if err := s.repo.SetSchedule(ctx, id, at.UTC()); err != nil {
		return fmt.Errorf("set schedule: %w", err)
	}
	return s.repo.UpdateStatus(ctx, id, domain.CampaignScheduled)
}

// DueScheduled returns scheduled campaigns ready to dispatch.
func (s *Service) DueScheduled(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	return s.repo.DueScheduled(ctx, now)
}

// BeginSend guards and starts a dispatch: the campaign must exist and must
// not already be sent; the transition to sending plus the resolved recipient
// count is committed before any delivery attempt.
func (s *Service) BeginSend(ctx context.Context, id string, totalRecipients int) error {
	if err := s.repo.MarkSending(ctx, id, totalRecipients); err != nil {
		return fmt.Errorf("transition to sending: %w", err)
	}
	return nil
}

// CompleteSend closes out a dispatch with its final tallies.
func (s *Service) CompleteSend(ctx context.Context, id string, status domain.CampaignStatus, sent, failed int) error {
	return s.repo.MarkCompleted(ctx, id, status, sent, failed, time.Now().UTC())
}

// Stats returns dashboard counters.
func (s *Service) Stats(ctx context.Context) (total, sent int, err error) {
	return s.repo.Stats(ctx)
}
