// Package contact stores inquiries submitted through the public contact form.
package contact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/insurancepro/marketing/internal/domain"
	"github.com/insurancepro/marketing/internal/service/subscriber"
)

// ErrNotFound is returned for unknown message IDs.
var ErrNotFound = errors.New("contact message not found")

// Repository defines the data access contract for contact messages.
type Repository interface {
	Create(ctx context.Context, m *domain.ContactMessage) (string, error)
	List(ctx context.Context, limit, offset int) ([]domain.ContactMessage, int, error)
	MarkRead(ctx context.Context, id string) error
	CountUnread(ctx context.Context) (int, error)
}

// Service implements contact message handling.
type Service struct {
	repo Repository
}

// NewService creates a contact service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SubmitInput holds the contact form fields.
type SubmitInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Submit validates and stores an inquiry.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*domain.ContactMessage, error) {
	if input.Name == "" || input.Subject == "" || input.Message == "" {
		return nil, fmt.Errorf("name, subject, and message are required")
	}
	if !subscriber.ValidEmail(subscriber.NormalizeEmail(input.Email)) {
		return nil, subscriber.ErrInvalidEmail
	}

	m := &domain.ContactMessage{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Email:     subscriber.NormalizeEmail(input.Email),
		Phone:     input.Phone,
		Subject:   input.Subject,
		Message:   input.Message,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("store contact message: %w", err)
	}
	return m, nil
}

// List returns messages, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.ContactMessage, int, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.List(ctx, limit, offset)
}

// MarkRead flags a message as handled.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.repo.MarkRead(ctx, id)
}

// CountUnread returns the unread-message dashboard counter.
func (s *Service) CountUnread(ctx context.Context) (int, error) {
	return s.repo.CountUnread(ctx)
}
