package campaign_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/insurancepro/marketing/internal/domain"
	"github.com/insurancepro/marketing/internal/service/campaign"
)

// memRepo is an in-memory campaign repository for unit testing.
type memRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
}

func newMemRepo() *memRepo {
	return &memRepo{campaigns: make(map[string]*domain.Campaign)}
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, c *domain.Campaign) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		return "", fmt.Errorf("id required")
	}
	cp := *c
	m.campaigns[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return campaign.ErrNotFound
	}
	delete(m.campaigns, id)
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id string, status domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *memRepo) MarkSending(_ context.Context, id string, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.Status = domain.CampaignSending
	c.TotalRecipients = total
	return nil
}

func (m *memRepo) MarkCompleted(_ context.Context, id string, status domain.CampaignStatus, sent, failed int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.Status = status
	c.SentCount = sent
	c.FailedCount = failed
	t := at
	c.SentAt = &t
	return nil
}

func (m *memRepo) SetSchedule(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	t := at
	c.ScheduledAt = &t
	return nil
}

func (m *memRepo) DueScheduled(_ context.Context, now time.Time) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if c.Status == domain.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memRepo) Stats(_ context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sent := 0
	for _, c := range m.campaigns {
		if c.Status == domain.CampaignSent {
			sent++
		}
	}
	return len(m.campaigns), sent, nil
}

func validInput() campaign.CreateInput {
	return campaign.CreateInput{
		Name: "Spring promo", Subject: "Save big", Content: "<p>Hello</p>",
		Template: "promotional", Segment: "active",
	}
}

func TestCreate(t *testing.T) {
	svc := campaign.NewService(newMemRepo())
	c, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != domain.CampaignDraft {
		t.Fatalf("expected draft, got %s", c.Status)
	}
	if c.Template != domain.TemplatePromotional || c.Segment != domain.SegmentActive {
		t.Fatalf("template/segment not applied: %s/%s", c.Template, c.Segment)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := campaign.NewService(newMemRepo())
	_, err := svc.Create(context.Background(), campaign.CreateInput{})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestCreateUnknownTemplateFallsBack(t *testing.T) {
	svc := campaign.NewService(newMemRepo())
	in := validInput()
	in.Template = "glitter"
	in.Segment = "vip"
	c, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Template != domain.TemplateDefault {
		t.Fatalf("expected default template, got %s", c.Template)
	}
	if c.Segment != domain.SegmentAll {
		t.Fatalf("expected all segment, got %s", c.Segment)
	}
}

func TestGetNotFound(t *testing.T) {
	svc := campaign.NewService(newMemRepo())
	_, err := svc.Get(context.Background(), "nonexistent")
	if err != campaign.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteSentRefused(t *testing.T) {
	repo := newMemRepo()
	svc := campaign.NewService(repo)
	c, _ := svc.Create(context.Background(), validInput())
	repo.MarkCompleted(context.Background(), c.ID, domain.CampaignSent, 3, 0, time.Now())

	if err := svc.Delete(context.Background(), c.ID); err != campaign.ErrImmutable {
		t.Fatalf("expected ErrImmutable, got %v", err)
	}
	if _, err := svc.Get(context.Background(), c.ID); err != nil {
		t.Fatal("sent campaign must survive a delete attempt")
	}
}

func TestDeleteDraft(t *testing.T) {
	svc := campaign.NewService(newMemRepo())
	c, _ := svc.Create(context.Background(), validInput())
	if err := svc.Delete(context.Background(), c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), c.ID); err != campaign.ErrNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestSchedule(t *testing.T) {
	svc := campaign.NewService(newMemRepo())
	c, _ := svc.Create(context.Background(), validInput())

	at := time.Now().Add(time.Hour)
	if err := svc.Schedule(context.Background(), c.ID, at); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	got, _ := svc.Get(context.Background(), c.ID)
	if got.Status != domain.CampaignScheduled {
		t.Fatalf("expected scheduled, got %s", got.Status)
	}

	due, _ := svc.DueScheduled(context.Background(), at.Add(time.Minute))
	if len(due) != 1 {
		t.Fatalf("expected 1 due campaign, got %d", len(due))
	}
}

func TestSchedulePastTime(t *testing.T) {
	svc := campaign.NewService(newMemRepo())
	c, _ := svc.Create(context.Background(), validInput())
	if err := svc.Schedule(context.Background(), c.ID, time.Now().Add(-time.Minute)); err == nil {
		t.Fatal("expected error scheduling in the past")
	}
}
