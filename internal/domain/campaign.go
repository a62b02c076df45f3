package domain

import "time"

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignFailed    CampaignStatus = "failed"
)

// Template enumerates the fixed email template variants.
type Template string

const (
	TemplateDefault     Template = "default"
	TemplatePromotional Template = "promotional"
	TemplateNewsletter  Template = "newsletter"
)

// Campaign represents an email campaign with its content and targeting.
// Content is admin-authored HTML and is injected into the template verbatim:
// it is trusted, not sanitized.
type Campaign struct {
	ID       string         `json:"id" db:"id"`
	Name     string         `json:"name" db:"name"`
	Subject  string         `json:"subject" db:"subject"`
	Content  string         `json:"content" db:"content"`
	Template Template       `json:"template" db:"template"`
	Segment  Segment        `json:"segment" db:"segment"`
	Status   CampaignStatus `json:"status" db:"status"`

	TotalRecipients int `json:"total_recipients" db:"total_recipients"`
	SentCount       int `json:"sent_count" db:"sent_count"`
	FailedCount     int `json:"failed_count" db:"failed_count"`
	OpenedCount     int `json:"opened_count" db:"opened_count"` // placeholder, no open tracking yet

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ScheduledAt *time.Time `json:"scheduled_at" db:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at" db:"sent_at"`
}

// IsTerminal returns true if the campaign is in a final state.
// A sent campaign is immutable: it cannot be edited, deleted, or resent.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignSent || c.Status == CampaignFailed
}
