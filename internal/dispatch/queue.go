package dispatch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/insurancepro/marketing/internal/service/campaign"
)

const (
	queueKey = "campaigns:send:queue"

	// lockTTL bounds how long a crashed worker can keep a campaign
	// claimed before another worker may pick it up again.
	lockTTL = 10 * time.Minute

	popTimeout = 5 * time.Second
)

// Queue is a Redis-backed send queue. Enqueue pushes a campaign ID; a
// worker pops IDs and runs the dispatcher. A per-campaign SET NX lock
// keeps two workers from sending the same campaign concurrently.
type Queue struct {
	rdb        *redis.Client
	dispatcher *Dispatcher
}

func NewQueue(rdb *redis.Client, dispatcher *Dispatcher) *Queue {
	return &Queue{rdb: rdb, dispatcher: dispatcher}
}

// Enqueue schedules a campaign for background sending.
func (q *Queue) Enqueue(ctx context.Context, campaignID string) error {
	if err := q.rdb.LPush(ctx, queueKey, campaignID).Err(); err != nil {
		return fmt.Errorf("failed to enqueue campaign %s: %w", campaignID, err)
	}
	return nil
}

// Depth returns the number of campaigns waiting in the queue.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, queueKey).Result()
}

// Run consumes the queue until ctx is cancelled. Pop timeouts are normal;
// everything else is logged and retried after a short backoff.
func (q *Queue) Run(ctx context.Context) {
	log.Printf("[dispatch] queue worker started")
	for {
		select {
		case <-ctx.Done():
			log.Printf("[dispatch] queue worker stopped")
			return
		default:
		}

		vals, err := q.rdb.BRPop(ctx, popTimeout, queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			log.Printf("[dispatch] queue pop failed: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}
		// BRPop returns [key, value].
		q.process(ctx, vals[1])
	}
}

func (q *Queue) process(ctx context.Context, campaignID string) {
	lock := newCampaignLock(q.rdb, campaignID)
	ok, err := lock.Acquire(ctx)
	if err != nil {
		log.Printf("[dispatch] campaign %s: lock error: %v", campaignID, err)
		return
	}
	if !ok {
		log.Printf("[dispatch] campaign %s: already claimed by another worker, skipping", campaignID)
		return
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			log.Printf("[dispatch] campaign %s: lock release failed: %v", campaignID, err)
		}
	}()

	_, err = q.dispatcher.Send(ctx, campaignID)
	switch {
	case err == nil:
	case errors.Is(err, campaign.ErrAlreadySent):
		log.Printf("[dispatch] campaign %s: already sent, dropping queue entry", campaignID)
	case errors.Is(err, campaign.ErrNoRecipients):
		log.Printf("[dispatch] campaign %s: no recipients, dropping queue entry", campaignID)
	default:
		log.Printf("[dispatch] campaign %s: send failed: %v", campaignID, err)
	}
}

// campaignLock is a Redis SET NX lock with a random ownership value so a
// worker can only release a lock it still holds.
type campaignLock struct {
	rdb   *redis.Client
	key   string
	value string
}

func newCampaignLock(rdb *redis.Client, campaignID string) *campaignLock {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("dispatch: crypto/rand failed: %v", err))
	}
	return &campaignLock{
		rdb:   rdb,
		key:   "lock:campaign:send:" + campaignID,
		value: hex.EncodeToString(b),
	}
}

func (l *campaignLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.value, lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

func (l *campaignLock) Release(ctx context.Context) error {
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	_, err := script.Run(ctx, l.rdb, []string{l.key}, l.value).Result()
	return err
}
