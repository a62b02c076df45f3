package domain

import "time"

// SubscriberStatus enumerates the states a subscriber can be in.
type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
	SubscriberBounced      SubscriberStatus = "bounced"

	// SubscriberLegacy is the empty status carried by rows imported before
	// the status column existed. Segment resolution treats it like active.
	SubscriberLegacy SubscriberStatus = ""
)

// Subscriber represents a single newsletter recipient.
// Email is the identity: unique across all subscribers regardless of status,
// stored lowercased. Subscribers are never physically deleted; unsubscribe
// and bounce are status transitions.
type Subscriber struct {
	ID             string           `json:"id" db:"id"`
	Email          string           `json:"email" db:"email"`
	Name           string           `json:"name" db:"name"`
	Phone          string           `json:"phone" db:"phone"`
	InsuranceType  string           `json:"insurance_type" db:"insurance_type"`
	Status         SubscriberStatus `json:"status" db:"status"`
	SubscribedAt   time.Time        `json:"subscribed_at" db:"subscribed_at"`
	LastCampaignAt *time.Time       `json:"last_campaign_at" db:"last_campaign_at"`
}

// Eligible reports whether the subscriber may receive campaign email.
// Unsubscribed and bounced subscribers are never eligible.
func (s *Subscriber) Eligible() bool {
	return s.Status == SubscriberActive || s.Status == SubscriberLegacy
}

// Segment names a subset-selection rule over subscribers used to resolve a
// campaign's recipients.
type Segment string

const (
	// SegmentAll matches active subscribers plus legacy empty-status rows.
	SegmentAll Segment = "all"
	// SegmentActive matches status = active only.
	SegmentActive Segment = "active"
)

// Valid reports whether s is a known segment.
func (s Segment) Valid() bool {
	return s == SegmentAll || s == SegmentActive
}
