// Package pipeline runs the aggregation loop: fan out to every enabled
// collector, merge fairly, filter, dedupe, and hand accepted listings
// to the paced delivery queue. One cycle at a time; a manual trigger
// while a cycle runs is coalesced into the next tick.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tejaschuahan/job-scraper-bot/internal/dedupe"
	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
	"github.com/tejaschuahan/job-scraper-bot/internal/enrich"
	"github.com/tejaschuahan/job-scraper-bot/internal/events"
	"github.com/tejaschuahan/job-scraper-bot/internal/fetch"
	"github.com/tejaschuahan/job-scraper-bot/internal/filter"
	"github.com/tejaschuahan/job-scraper-bot/internal/notify"
	"github.com/tejaschuahan/job-scraper-bot/internal/source"
	"github.com/tejaschuahan/job-scraper-bot/internal/stats"
)

type Config struct {
	Queries           []string
	Interval          time.Duration // between cycle starts
	CollectorTimeout  time.Duration // budget per collector call, retries included
	HealthInterval    time.Duration // between staleness checks
	StaleAfter        time.Duration // no success for this long means stale
	SummaryInterval   time.Duration // between stats summary messages
	ResetAfterSummary bool
	SimilarWindow     int

	FailureAlertThreshold int // consecutive failed cycles before alerting

	EnrichSummaries bool
	EnrichScores    bool
	ExpandQueries   bool
}

// maxQueries bounds the query list after expansion so an overeager
// model cannot multiply the fetch load.
const maxQueries = 8

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.CollectorTimeout <= 0 {
		c.CollectorTimeout = 3 * time.Minute
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 30 * time.Minute
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = time.Hour
	}
	if c.SummaryInterval <= 0 {
		c.SummaryInterval = 24 * time.Hour
	}
	if c.SimilarWindow <= 0 {
		c.SimilarWindow = dedupe.SimilarWindow
	}
	if c.FailureAlertThreshold <= 0 {
		c.FailureAlertThreshold = 5
	}
}

type Pipeline struct {
	cfg      Config
	registry *source.Registry
	rules    filter.RuleSet
	store    *dedupe.Store
	tracker  *stats.Tracker
	health   *fetch.Health
	queue    *notify.Queue
	notifier notify.Notifier
	enricher enrich.Enricher
	hub      *events.Hub
	log      *zap.Logger

	runNow chan struct{}

	mu            sync.Mutex
	lastSuccess   time.Time
	cycleFailures int
}

func New(
	cfg Config,
	registry *source.Registry,
	rules filter.RuleSet,
	store *dedupe.Store,
	tracker *stats.Tracker,
	health *fetch.Health,
	queue *notify.Queue,
	notifier notify.Notifier,
	enricher enrich.Enricher,
	hub *events.Hub,
	log *zap.Logger,
) *Pipeline {
	cfg.applyDefaults()
	if enricher == nil {
		enricher = enrich.Noop{}
	}
	return &Pipeline{
		cfg:      cfg,
		registry: registry,
		rules:    rules,
		store:    store,
		tracker:  tracker,
		health:   health,
		queue:    queue,
		notifier: notifier,
		enricher: enricher,
		hub:      hub,
		log:      log,
		runNow:   make(chan struct{}, 1),
	}
}

// RunNow requests an immediate cycle. Non-blocking; requests arriving
// while a cycle is in flight coalesce into one.
func (p *Pipeline) RunNow() {
	select {
	case p.runNow <- struct{}{}:
	default:
	}
}

// RunOnce executes a single cycle synchronously.
func (p *Pipeline) RunOnce(ctx context.Context) {
	p.runCycle(ctx)
}

// Run executes cycles until ctx is cancelled. The first cycle starts
// immediately.
func (p *Pipeline) Run(ctx context.Context) error {
	// staleness is measured from startup until the first cycle
	// succeeds, so a deployment that never manages one still alerts
	p.mu.Lock()
	if p.lastSuccess.IsZero() {
		p.lastSuccess = time.Now()
	}
	p.mu.Unlock()

	cycleTicker := time.NewTicker(p.cfg.Interval)
	defer cycleTicker.Stop()
	healthTicker := time.NewTicker(p.cfg.HealthInterval)
	defer healthTicker.Stop()
	summaryTicker := time.NewTicker(p.cfg.SummaryInterval)
	defer summaryTicker.Stop()

	p.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cycleTicker.C:
			p.runCycle(ctx)
		case <-p.runNow:
			p.runCycle(ctx)
		case <-healthTicker.C:
			p.checkHealth(ctx)
		case <-summaryTicker.C:
			p.sendSummary(ctx)
		}
	}
}

// runCycle is the whole fetch→merge→filter→dedupe→deliver pass.
func (p *Pipeline) runCycle(ctx context.Context) {
	cycleID := uuid.NewString()
	started := time.Now()
	log := p.log.With(zap.String("cycle", cycleID))

	queries := p.queries(ctx, log)
	collectors := p.registry.All()
	if len(collectors) == 0 || len(queries) == 0 {
		log.Warn("nothing to do", zap.Int("collectors", len(collectors)), zap.Int("queries", len(queries)))
		return
	}

	p.hub.Publish(events.MakeEvent(cycleID, events.TypeCycleStarted, map[string]any{
		"queries": queries,
		"sources": p.registry.Names(),
	}))
	log.Info("cycle started", zap.Int("sources", len(collectors)), zap.Int("queries", len(queries)))

	bySource, collectErrs := p.collect(ctx, collectors, queries, cycleID, log)

	// the cycle is errored only when every single call failed; isolated
	// source failures are business as usual
	calls := len(collectors) * len(queries)
	if collectErrs == calls {
		p.recordCycleFailure(ctx, log)
	} else {
		p.recordCycleSuccess()
	}

	accepted := p.merge(ctx, bySource, cycleID, log)

	delivered, failed := p.queue.Drain(ctx)
	for i := 0; i < failed; i++ {
		p.tracker.RecordError("")
	}

	p.tracker.RecordCycle()
	p.hub.Publish(events.MakeEvent(cycleID, events.TypeCycleFinished, map[string]any{
		"accepted":  accepted,
		"delivered": delivered,
		"failed":    failed,
		"elapsed":   time.Since(started).String(),
	}))
	log.Info("cycle finished",
		zap.Int("accepted", accepted),
		zap.Int("delivered", delivered),
		zap.Int("delivery_failures", failed),
		zap.Duration("elapsed", time.Since(started)))
}

// queries returns the configured queries, optionally expanded by the
// enricher. Expansion failure falls back to the configured set.
func (p *Pipeline) queries(ctx context.Context, log *zap.Logger) []string {
	if !p.cfg.ExpandQueries {
		return p.cfg.Queries
	}
	expanded, err := p.enricher.ExpandQueries(ctx, p.cfg.Queries)
	if err != nil {
		log.Warn("query expansion failed", zap.Error(err))
		return p.cfg.Queries
	}
	if len(expanded) > maxQueries {
		expanded = expanded[:maxQueries]
	}
	return expanded
}

func (p *Pipeline) recordCycleSuccess() {
	p.mu.Lock()
	p.lastSuccess = time.Now()
	p.cycleFailures = 0
	p.mu.Unlock()
}

func (p *Pipeline) recordCycleFailure(ctx context.Context, log *zap.Logger) {
	p.mu.Lock()
	p.cycleFailures++
	failures := p.cycleFailures
	p.mu.Unlock()

	p.tracker.RecordError("")
	log.Warn("cycle produced nothing but errors", zap.Int("consecutive", failures))

	if failures >= p.cfg.FailureAlertThreshold {
		msg := fmt.Sprintf("WARNING: %d consecutive failed cycles", failures)
		p.hub.Publish(events.MakeEvent("", events.TypeAlert, map[string]any{"message": msg}))
		if err := p.notifier.SendAlert(ctx, msg); err != nil {
			log.Error("alert send failed", zap.Error(err))
		}
	}
}

// collect fans out one goroutine per (collector, query) pair. Each pair
// gets its own deadline so a hung source cannot stall its siblings, and
// a pair's failure never cancels the group.
func (p *Pipeline) collect(ctx context.Context, collectors []source.Collector, queries []string, cycleID string, log *zap.Logger) (map[string][]domain.Listing, int) {
	var (
		mu       sync.Mutex
		bySource = make(map[string][]domain.Listing, len(collectors))
		failed   int
	)

	var g errgroup.Group
	for _, c := range collectors {
		for _, q := range queries {
			c, q := c, q
			g.Go(func() error {
				cctx, cancel := context.WithTimeout(ctx, p.cfg.CollectorTimeout)
				defer cancel()

				listings, err := c.Collect(cctx, q)
				if err != nil {
					log.Warn("collector failed",
						zap.String("source", c.Name()),
						zap.String("query", q),
						zap.Error(err))
					p.hub.Publish(events.MakeEvent(cycleID, events.TypeSourceFailed, map[string]any{
						"source": c.Name(),
						"query":  q,
						"error":  err.Error(),
					}))
					mu.Lock()
					failed++
					mu.Unlock()
					return nil
				}
				if len(listings) == 0 {
					return nil
				}
				mu.Lock()
				bySource[c.Name()] = append(bySource[c.Name()], listings...)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()
	return bySource, failed
}

// merge interleaves per-source result lists round-robin in sorted
// source-name order, so one prolific source cannot crowd the others out
// of the delivery queue, and runs each listing through filter and
// dedupe. Returns the number accepted.
func (p *Pipeline) merge(ctx context.Context, bySource map[string][]domain.Listing, cycleID string, log *zap.Logger) int {
	names := p.registry.Names()
	idx := make(map[string]int, len(names))

	var acceptedWindow []domain.Listing
	accepted := 0

	for {
		progressed := false
		for _, name := range names {
			listings := bySource[name]
			i := idx[name]
			if i >= len(listings) {
				continue
			}
			idx[name] = i + 1
			progressed = true

			if p.process(ctx, listings[i], &acceptedWindow, cycleID, log) {
				accepted++
			}
		}
		if !progressed {
			return accepted
		}
	}
}

// process runs one listing through the acceptance gauntlet. Order
// matters: filter first (cheapest), then exact fingerprint, then fuzzy
// against this cycle's accepted window, then durable commit, and only
// after the commit lands does the listing reach the delivery queue.
func (p *Pipeline) process(ctx context.Context, l domain.Listing, acceptedWindow *[]domain.Listing, cycleID string, log *zap.Logger) bool {
	if !filter.Matches(l, p.rules) {
		p.tracker.RecordFiltered()
		return false
	}

	fp := dedupe.Fingerprint(l)
	if p.store.IsSeen(fp) {
		p.tracker.RecordDuplicate()
		return false
	}
	if dedupe.IsSimilar(l, *acceptedWindow) {
		p.tracker.RecordDuplicate()
		return false
	}

	if err := p.store.Commit(ctx, l, fp); err != nil {
		// not committed means not delivered; the next cycle retries
		log.Error("commit failed", zap.String("url", l.URL), zap.Error(err))
		p.tracker.RecordError("")
		return false
	}

	p.queue.Enqueue(l, p.enrichment(ctx, l, log))

	*acceptedWindow = append(*acceptedWindow, l)
	if len(*acceptedWindow) > p.cfg.SimilarWindow {
		*acceptedWindow = (*acceptedWindow)[len(*acceptedWindow)-p.cfg.SimilarWindow:]
	}

	p.tracker.RecordNew(l.Source)
	p.hub.Publish(events.MakeEvent(cycleID, events.TypeListingAccepted, map[string]any{
		"title":   l.Title,
		"company": l.Company,
		"source":  l.Source,
		"url":     l.URL,
	}))
	return true
}

// enrichment asks the enricher for extras; any failure degrades to the
// plain listing.
func (p *Pipeline) enrichment(ctx context.Context, l domain.Listing, log *zap.Logger) notify.Enrichment {
	var e notify.Enrichment
	if p.cfg.EnrichSummaries {
		summary, err := p.enricher.Summarize(ctx, l.Title, l.Company, l.Description)
		if err != nil {
			log.Warn("summary enrichment failed", zap.String("url", l.URL), zap.Error(err))
		} else {
			e.Summary = summary
		}
	}
	if p.cfg.EnrichScores {
		score, err := p.enricher.ScoreQuality(ctx, l.Title, l.Company, l.Description)
		if err != nil {
			log.Warn("score enrichment failed", zap.String("url", l.URL), zap.Error(err))
		} else {
			e.Score = score
		}
	}
	return e
}

// checkHealth alerts when the pipeline as a whole, or any individual
// source, has not succeeded within the staleness window.
func (p *Pipeline) checkHealth(ctx context.Context) {
	p.mu.Lock()
	lastSuccess := p.lastSuccess
	p.mu.Unlock()

	if !lastSuccess.IsZero() {
		if since := time.Since(lastSuccess); since > p.cfg.StaleAfter {
			msg := fmt.Sprintf("No successful cycle for %s", since.Round(time.Minute))
			p.log.Warn("pipeline stale", zap.Duration("since", since))
			p.hub.Publish(events.MakeEvent("", events.TypeAlert, map[string]any{"message": msg}))
			if err := p.notifier.SendAlert(ctx, msg); err != nil {
				p.log.Error("alert send failed", zap.Error(err))
			}
		}
	}

	if p.health == nil {
		return
	}
	for name, h := range p.health.Snapshot() {
		if h.LastSuccess.IsZero() {
			continue // never succeeded yet; the failure streak alert covers it
		}
		if since := time.Since(h.LastSuccess); since > p.cfg.StaleAfter {
			msg := fmt.Sprintf("No successful fetch from %s for %s", name, since.Round(time.Minute))
			p.log.Warn("source stale", zap.String("source", name), zap.Duration("since", since))
			p.hub.Publish(events.MakeEvent("", events.TypeAlert, map[string]any{"message": msg}))
			if err := p.notifier.SendAlert(ctx, msg); err != nil {
				p.log.Error("alert send failed", zap.Error(err))
			}
		}
	}
}

// sendSummary pushes the periodic stats digest.
func (p *Pipeline) sendSummary(ctx context.Context) {
	summary := p.tracker.Summary()
	if err := p.notifier.SendAlert(ctx, summary); err != nil {
		p.log.Error("summary send failed", zap.Error(err))
		return
	}
	if p.cfg.ResetAfterSummary {
		p.tracker.Reset()
	}
}
