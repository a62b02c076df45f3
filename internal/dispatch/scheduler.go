package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/insurancepro/marketing/internal/domain"
)

// ScheduleSource lists campaigns whose scheduled send time has passed.
type ScheduleSource interface {
	DueScheduled(ctx context.Context, now time.Time) ([]domain.Campaign, error)
}

// Scheduler promotes due scheduled campaigns onto the send queue. Dedup is
// handled downstream: the per-campaign lock and the already-sent guard make
// a double enqueue harmless.
type Scheduler struct {
	source   ScheduleSource
	queue    *Queue
	interval time.Duration
}

func NewScheduler(source ScheduleSource, queue *Queue, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{source: source, queue: queue, interval: interval}
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("[dispatch] scheduler started, interval=%s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[dispatch] scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.source.DueScheduled(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("[dispatch] scheduler: failed to list due campaigns: %v", err)
		return
	}
	for _, c := range due {
		if err := s.queue.Enqueue(ctx, c.ID); err != nil {
			log.Printf("[dispatch] scheduler: failed to enqueue campaign %s: %v", c.ID, err)
			continue
		}
		log.Printf("[dispatch] scheduler: enqueued scheduled campaign %s (%s)", c.ID, c.Name)
	}
}
