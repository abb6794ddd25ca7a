package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
)

type queued struct {
	listing domain.Listing
	extra   Enrichment
}

// Queue paces deliveries so a burst of new listings does not trip the
// messaging API's flood limits. Items are enqueued during the cycle and
// drained at the end; a delivery failure is final for that item.
type Queue struct {
	notifier Notifier
	limiter  *rate.Limiter
	log      *zap.Logger

	mu    sync.Mutex
	items []queued
}

// NewQueue builds a queue sending at most perSecond messages a second.
func NewQueue(n Notifier, perSecond float64, log *zap.Logger) *Queue {
	if perSecond <= 0 {
		perSecond = 2
	}
	return &Queue{
		notifier: n,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), 1),
		log:      log,
	}
}

func (q *Queue) Enqueue(l domain.Listing, e Enrichment) {
	q.mu.Lock()
	q.items = append(q.items, queued{listing: l, extra: e})
	q.mu.Unlock()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain sends every queued item in order and empties the queue. It
// returns the number delivered and the number that failed. Failed items
// are dropped, not re-enqueued: the listing is already committed to the
// seen set, and retrying risks a duplicate message.
func (q *Queue) Drain(ctx context.Context) (delivered, failed int) {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	for _, it := range items {
		if err := q.limiter.Wait(ctx); err != nil {
			q.log.Warn("delivery drain interrupted", zap.Error(err), zap.Int("remaining", len(items)-delivered-failed))
			failed += len(items) - delivered - failed
			return delivered, failed
		}
		if err := q.notifier.Deliver(ctx, it.listing, it.extra); err != nil {
			failed++
			q.log.Error("delivery failed",
				zap.String("title", it.listing.Title),
				zap.String("company", it.listing.Company),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered, failed
}
