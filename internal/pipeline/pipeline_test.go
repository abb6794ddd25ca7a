package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tejaschuahan/job-scraper-bot/internal/dedupe"
	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
	"github.com/tejaschuahan/job-scraper-bot/internal/events"
	"github.com/tejaschuahan/job-scraper-bot/internal/fetch"
	"github.com/tejaschuahan/job-scraper-bot/internal/filter"
	"github.com/tejaschuahan/job-scraper-bot/internal/notify"
	"github.com/tejaschuahan/job-scraper-bot/internal/source"
	"github.com/tejaschuahan/job-scraper-bot/internal/stats"
)

type stubCollector struct {
	name     string
	listings []domain.Listing
	err      error
}

func (s stubCollector) Name() string { return s.name }

func (s stubCollector) Collect(context.Context, string) ([]domain.Listing, error) {
	return s.listings, s.err
}

type captureNotifier struct {
	mu     sync.Mutex
	titles []string
	alerts []string
}

func (c *captureNotifier) Deliver(_ context.Context, l domain.Listing, _ notify.Enrichment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles = append(c.titles, l.Title)
	return nil
}

func (c *captureNotifier) SendAlert(_ context.Context, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, msg)
	return nil
}

func (c *captureNotifier) delivered() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.titles...)
}

func (c *captureNotifier) alerted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.alerts...)
}

func listings(source string, titles ...string) []domain.Listing {
	out := make([]domain.Listing, 0, len(titles))
	for _, title := range titles {
		out = append(out, domain.Listing{
			Title:   title,
			Company: "Company " + title,
			URL:     fmt.Sprintf("https://%s.example/%s", source, title),
			Source:  source,
		})
	}
	return out
}

func newTestPipeline(t *testing.T, rules filter.RuleSet, collectors ...source.Collector) (*Pipeline, *captureNotifier, *stats.Tracker) {
	t.Helper()

	store, err := dedupe.Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	registry := source.NewRegistry()
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	notifier := &captureNotifier{}
	tracker := stats.NewTracker()
	queue := notify.NewQueue(notifier, 1000, zap.NewNop())

	p := New(Config{Queries: []string{"engineer"}},
		registry, rules, store, tracker, fetch.NewHealth(), queue, notifier, nil, events.NewHub(), zap.NewNop())
	return p, notifier, tracker
}

func TestCycleRoundRobinFairness(t *testing.T) {
	p, notifier, _ := newTestPipeline(t, filter.RuleSet{},
		stubCollector{name: "alpha", listings: listings("alpha", "a1", "a2", "a3", "a4", "a5")},
		stubCollector{name: "beta", listings: listings("beta", "b1", "b2")},
		stubCollector{name: "gamma"},
	)

	p.RunOnce(context.Background())

	want := []string{"a1", "b1", "a2", "b2", "a3", "a4", "a5"}
	got := notifier.delivered()
	if len(got) != len(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivery order %v, want %v", got, want)
		}
	}
}

func TestCycleAtMostOnceAcrossCycles(t *testing.T) {
	p, notifier, tracker := newTestPipeline(t, filter.RuleSet{},
		stubCollector{name: "alpha", listings: listings("alpha", "a1", "a2")},
	)

	ctx := context.Background()
	p.RunOnce(ctx)
	p.RunOnce(ctx)

	if got := notifier.delivered(); len(got) != 2 {
		t.Errorf("delivered %v, want each listing exactly once", got)
	}
	snap := tracker.Snapshot()
	if snap.Duplicates != 2 {
		t.Errorf("duplicates = %d, want 2 from the second cycle", snap.Duplicates)
	}
}

func TestCycleFuzzyDuplicateWithinCycle(t *testing.T) {
	same := domain.Listing{
		Title:   "Senior Backend Engineer",
		Company: "Acme",
		URL:     "https://alpha.example/1",
		Source:  "alpha",
	}
	variant := domain.Listing{
		Title:   "Backend Engineer Senior Role",
		Company: "acme",
		URL:     "https://beta.example/99",
		Source:  "beta",
	}

	p, notifier, tracker := newTestPipeline(t, filter.RuleSet{},
		stubCollector{name: "alpha", listings: []domain.Listing{same}},
		stubCollector{name: "beta", listings: []domain.Listing{variant}},
	)

	p.RunOnce(context.Background())

	if got := notifier.delivered(); len(got) != 1 {
		t.Errorf("delivered %v, want the fuzzy duplicate suppressed", got)
	}
	if tracker.Snapshot().Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", tracker.Snapshot().Duplicates)
	}
}

func TestCycleFilterRejections(t *testing.T) {
	p, notifier, tracker := newTestPipeline(t,
		filter.RuleSet{ExcludeKeywords: []string{"unpaid"}},
		stubCollector{name: "alpha", listings: []domain.Listing{
			{Title: "Engineer", Company: "Acme", URL: "https://a.example/1", Source: "alpha"},
			{Title: "Unpaid Intern", Company: "Acme", URL: "https://a.example/2", Source: "alpha"},
		}},
	)

	p.RunOnce(context.Background())

	if got := notifier.delivered(); len(got) != 1 || got[0] != "Engineer" {
		t.Errorf("delivered %v, want only the non-excluded listing", got)
	}
	if tracker.Snapshot().Filtered != 1 {
		t.Errorf("filtered = %d, want 1", tracker.Snapshot().Filtered)
	}
}

func TestCycleSurvivesCollectorFailure(t *testing.T) {
	p, notifier, _ := newTestPipeline(t, filter.RuleSet{},
		stubCollector{name: "alpha", err: errors.New("parse blew up")},
		stubCollector{name: "beta", listings: listings("beta", "b1")},
	)

	p.RunOnce(context.Background())

	if got := notifier.delivered(); len(got) != 1 || got[0] != "b1" {
		t.Errorf("delivered %v, want the healthy source unaffected", got)
	}
}

func TestCycleFailureStreakAlerts(t *testing.T) {
	p, notifier, _ := newTestPipeline(t, filter.RuleSet{},
		stubCollector{name: "alpha", err: errors.New("connection refused")},
		stubCollector{name: "beta", err: errors.New("503")},
	)
	p.cfg.FailureAlertThreshold = 2

	ctx := context.Background()
	p.RunOnce(ctx)
	if got := notifier.alerted(); len(got) != 0 {
		t.Fatalf("alerts after one failed cycle = %v, want none below threshold", got)
	}

	p.RunOnce(ctx)
	got := notifier.alerted()
	if len(got) != 1 {
		t.Fatalf("alerts = %v, want exactly one at the threshold", got)
	}
	if want := "WARNING: 2 consecutive failed cycles"; got[0] != want {
		t.Errorf("alert = %q, want %q", got[0], want)
	}
}

func TestCycleSuccessResetsFailureStreak(t *testing.T) {
	p, notifier, _ := newTestPipeline(t, filter.RuleSet{},
		stubCollector{name: "alpha", err: errors.New("connection refused")},
	)
	p.cfg.FailureAlertThreshold = 2

	ctx := context.Background()
	p.RunOnce(ctx)

	// one healthy call clears the streak
	p.recordCycleSuccess()

	p.RunOnce(ctx)
	if got := notifier.alerted(); len(got) != 0 {
		t.Errorf("alerts = %v, want none after the streak reset", got)
	}
}

func TestHealthAlertsWithoutAnySuccessfulCycle(t *testing.T) {
	p, notifier, _ := newTestPipeline(t, filter.RuleSet{},
		stubCollector{name: "alpha", err: errors.New("connection refused")},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// seeds the staleness clock, runs one failing cycle, returns on the
	// cancelled context
	_ = p.Run(ctx)

	p.cfg.StaleAfter = time.Nanosecond
	p.checkHealth(context.Background())

	got := notifier.alerted()
	found := false
	for _, msg := range got {
		if strings.HasPrefix(msg, "No successful cycle for") {
			found = true
		}
	}
	if !found {
		t.Errorf("alerts = %v, want a staleness alert before the first success", got)
	}
}

func TestRunNowCoalesces(t *testing.T) {
	p, _, _ := newTestPipeline(t, filter.RuleSet{},
		stubCollector{name: "alpha"},
	)

	// must never block no matter how many times it is called
	for i := 0; i < 10; i++ {
		p.RunNow()
	}
}
