// Package notify delivers accepted listings and operational alerts to
// the user. Delivery is paced and at-most-once: a listing is handed to
// the queue exactly once after being committed to the seen set, and a
// failed send is logged and counted but never retried.
package notify

import (
	"context"

	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
)

// Enrichment carries optional model-generated extras attached to a
// listing at delivery time. Zero value means no enrichment.
type Enrichment struct {
	Summary string
	Score   int // 1-10, 0 when unscored
}

type Notifier interface {
	// Deliver sends a single accepted listing.
	Deliver(ctx context.Context, l domain.Listing, e Enrichment) error
	// SendAlert sends an operational message (failures, staleness,
	// stats summaries) outside the normal listing flow.
	SendAlert(ctx context.Context, msg string) error
}

// Noop discards everything. Used when no channel is configured.
type Noop struct{}

func (Noop) Deliver(context.Context, domain.Listing, Enrichment) error { return nil }
func (Noop) SendAlert(context.Context, string) error                   { return nil }
