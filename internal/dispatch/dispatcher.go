package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/insurancepro/marketing/internal/domain"
	"github.com/insurancepro/marketing/internal/mailer"
	"github.com/insurancepro/marketing/internal/pkg/logger"
	"github.com/insurancepro/marketing/internal/service/campaign"
)

// CampaignStore is the slice of the campaign service the dispatcher needs.
type CampaignStore interface {
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	BeginSend(ctx context.Context, id string, totalRecipients int) error
	CompleteSend(ctx context.Context, id string, status domain.CampaignStatus, sent, failed int) error
}

// SubscriberStore resolves recipients and records delivery timestamps.
type SubscriberStore interface {
	Resolve(ctx context.Context, seg domain.Segment) ([]domain.Subscriber, error)
	TouchLastCampaign(ctx context.Context, id string, at time.Time) error
}

// TokenIssuer mints a recipient-bound unsubscribe token.
type TokenIssuer interface {
	Issue(email string) string
}

// Tally is the outcome of one dispatch run.
type Tally struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Dispatcher sends campaigns. One Send call fans its recipient set out over
// a bounded worker pool; tallies are folded by the dispatching goroutine
// only, so campaign counters have a single writer.
type Dispatcher struct {
	campaigns    CampaignStore
	subscribers  SubscriberStore
	codec        TokenIssuer
	transport    mailer.Transport
	personalizer *mailer.Personalizer
	baseURL      string
	workers      int
}

// New creates a dispatcher. workers bounds delivery concurrency; values
// below 1 fall back to the default of 8.
func New(campaigns CampaignStore, subscribers SubscriberStore, codec TokenIssuer, transport mailer.Transport, baseURL string, workers int) *Dispatcher {
	if workers < 1 {
		workers = 8
	}
	return &Dispatcher{
		campaigns:    campaigns,
		subscribers:  subscribers,
		codec:        codec,
		transport:    transport,
		personalizer: mailer.NewPersonalizer(),
		baseURL:      baseURL,
		workers:      workers,
	}
}

// Send dispatches the campaign to its resolved recipient set and returns the
// final tally.
//
// Guards: ErrNotFound for unknown campaigns; ErrAlreadySent (benign, with the
// original tallies) when the campaign is already sent; ErrNoRecipients when
// the segment resolves empty, in which case the campaign status is untouched.
//
// The transition to sending and the recipient total are committed before the
// first delivery attempt. Cancelling ctx stops launching new deliveries; the
// campaign is still closed out with the partial tallies.
func (d *Dispatcher) Send(ctx context.Context, campaignID string) (Tally, error) {
	c, err := d.campaigns.Get(ctx, campaignID)
	if err != nil {
		return Tally{}, err
	}

	if c.Status == domain.CampaignSent {
		return Tally{Total: c.TotalRecipients, Sent: c.SentCount, Failed: c.FailedCount}, campaign.ErrAlreadySent
	}

	recipients, err := d.subscribers.Resolve(ctx, c.Segment)
	if err != nil {
		return Tally{}, err
	}
	if len(recipients) == 0 {
		return Tally{}, campaign.ErrNoRecipients
	}

	if err := d.campaigns.BeginSend(ctx, c.ID, len(recipients)); err != nil {
		return Tally{}, err
	}

	log.Printf("[dispatch] campaign %s: sending to %d recipients (%d workers)", c.ID, len(recipients), d.workers)

	tally := d.deliverAll(ctx, c, recipients)

	status := domain.CampaignSent
	if tally.Sent == 0 && tally.Failed > 0 {
		status = domain.CampaignFailed
	}

	// The final update uses a fresh context so a cancelled send still
	// records its partial tallies instead of leaving the campaign stuck
	// in sending.
	finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.campaigns.CompleteSend(finishCtx, c.ID, status, tally.Sent, tally.Failed); err != nil {
		log.Printf("[dispatch] campaign %s: failed to record completion: %v", c.ID, err)
	}

	log.Printf("[dispatch] campaign %s: done, sent=%d failed=%d status=%s", c.ID, tally.Sent, tally.Failed, status)
	return tally, nil
}

// deliverAll fans recipients out over the worker pool and folds the results.
// Each recipient is read from the jobs channel exactly once, so no recipient
// can be sent to twice within one dispatch. The WaitGroup barrier guarantees
// every worker has finished before the tally is final.
func (d *Dispatcher) deliverAll(ctx context.Context, c *domain.Campaign, recipients []domain.Subscriber) Tally {
	jobs := make(chan domain.Subscriber)
	results := make(chan bool, len(recipients))

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				results <- d.deliverOne(ctx, c, sub)
			}
		}()
	}

	fed := 0
feed:
	for _, sub := range recipients {
		select {
		case <-ctx.Done():
			log.Printf("[dispatch] campaign %s: cancelled after %d of %d recipients", c.ID, fed, len(recipients))
			break feed
		case jobs <- sub:
			fed++
		}
	}
	close(jobs)

	wg.Wait()
	close(results)

	tally := Tally{Total: len(recipients)}
	for ok := range results {
		if ok {
			tally.Sent++
		} else {
			tally.Failed++
		}
	}
	return tally
}

// deliverOne issues the token, renders, and delivers for a single recipient.
// Panics from any stage count as a failure for that recipient only.
func (d *Dispatcher) deliverOne(ctx context.Context, c *domain.Campaign, sub domain.Subscriber) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recipient delivery panicked", "campaign", c.ID, "email", sub.Email, "panic", r)
			ok = false
		}
	}()

	tok := d.codec.Issue(sub.Email)
	link := mailer.UnsubscribeURL(d.baseURL, tok)

	bindings := d.personalizer.Context(&sub)
	subject := d.personalizer.Render(c.Subject, bindings)
	content := d.personalizer.Render(c.Content, bindings)
	html := mailer.RenderEmail(c.Template, content, link)

	if !d.transport.Deliver(ctx, sub.Email, subject, html, "") {
		return false
	}

	if err := d.subscribers.TouchLastCampaign(ctx, sub.ID, time.Now().UTC()); err != nil {
		logger.Warn("failed to stamp last campaign time", "subscriber", sub.Email, "err", err.Error())
	}
	return true
}

// Preview renders the campaign as it would be sent, with a placeholder
// recipient for the unsubscribe link.
func (d *Dispatcher) Preview(ctx context.Context, campaignID string) (string, error) {
	c, err := d.campaigns.Get(ctx, campaignID)
	if err != nil {
		return "", err
	}
	tok := d.codec.Issue("preview@example.com")
	return mailer.RenderEmail(c.Template, c.Content, mailer.UnsubscribeURL(d.baseURL, tok)), nil
}
