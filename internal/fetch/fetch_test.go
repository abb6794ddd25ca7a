package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tejaschuahan/job-scraper-bot/internal/stats"
)

func fastConfig() Config {
	return Config{
		MaxRetries:            3,
		RetryDelay:            time.Millisecond,
		MinDelay:              time.Millisecond,
		MaxDelay:              2 * time.Millisecond,
		Timeout:               2 * time.Second,
		FailureAlertThreshold: 2,
	}
}

func TestFetchRecoversAfterTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	tracker := stats.NewTracker()
	e := NewExecutor(fastConfig(), tracker, zap.NewNop(), nil)

	body, err := e.Fetch(context.Background(), srv.URL, "testsrc", nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if body != "payload" {
		t.Errorf("body = %q, want %q", body, "payload")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
	if tracker.Snapshot().Errors != 0 {
		t.Errorf("recovered fetch should not count as an error")
	}
}

func TestFetchExhaustionClassifiesForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tracker := stats.NewTracker()
	e := NewExecutor(fastConfig(), tracker, zap.NewNop(), nil)

	_, err := e.Fetch(context.Background(), srv.URL, "testsrc", nil)
	if err == nil {
		t.Fatalf("expected failure")
	}

	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("error is %T, want *Failure", err)
	}
	if f.Kind != KindForbidden {
		t.Errorf("kind = %s, want forbidden", f.Kind)
	}
	if f.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", f.Attempts)
	}
	if tracker.Snapshot().Errors != 1 {
		t.Errorf("exhausted fetch should count exactly one error, got %d", tracker.Snapshot().Errors)
	}
}

func TestFetchAlertsOnFailureStreak(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var alerts int32
	alert := func(ctx context.Context, msg string) { atomic.AddInt32(&alerts, 1) }

	e := NewExecutor(fastConfig(), stats.NewTracker(), zap.NewNop(), alert)

	ctx := context.Background()
	_, _ = e.Fetch(ctx, srv.URL, "testsrc", nil) // streak 1, below threshold
	if atomic.LoadInt32(&alerts) != 0 {
		t.Fatalf("alert fired below threshold")
	}
	_, _ = e.Fetch(ctx, srv.URL, "testsrc", nil) // streak 2, at threshold
	if atomic.LoadInt32(&alerts) != 1 {
		t.Errorf("alerts = %d, want 1", alerts)
	}
}

func TestFetchSuccessResetsStreak(t *testing.T) {
	var fail int32 = 1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&fail) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	e := NewExecutor(fastConfig(), stats.NewTracker(), zap.NewNop(), nil)
	ctx := context.Background()

	_, _ = e.Fetch(ctx, srv.URL, "testsrc", nil)
	if got := e.Health().Snapshot()["testsrc"].ConsecutiveFailures; got != 1 {
		t.Fatalf("streak = %d, want 1", got)
	}

	atomic.StoreInt32(&fail, 0)
	if _, err := e.Fetch(ctx, srv.URL, "testsrc", nil); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := e.Health().Snapshot()["testsrc"].ConsecutiveFailures; got != 0 {
		t.Errorf("streak = %d, want 0 after success", got)
	}
}

func TestFetchBackoffDoublesAndStopsAfterLastAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := Config{
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
		MinDelay:   time.Millisecond,
		MaxDelay:   time.Millisecond, // zero spread, politeness is exactly MinDelay
		Timeout:    2 * time.Second,
	}
	e := NewExecutor(cfg, stats.NewTracker(), zap.NewNop(), nil)
	e.limiter = NewHostLimiter(1000, 1000)

	var sleeps []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	if _, err := e.Fetch(context.Background(), srv.URL, "testsrc", nil); err == nil {
		t.Fatalf("expected exhaustion")
	}

	var backoffs []time.Duration
	for _, d := range sleeps {
		if d > cfg.MinDelay {
			backoffs = append(backoffs, d)
		}
	}

	// three attempts sleep twice; the final failure returns immediately
	want := []time.Duration{5 * time.Second, 10 * time.Second}
	if len(backoffs) != len(want) {
		t.Fatalf("backoffs = %v, want %v", backoffs, want)
	}
	bound := cfg.RetryDelay * (1 << (cfg.MaxRetries - 1))
	for i, d := range backoffs {
		if d != want[i] {
			t.Errorf("backoff[%d] = %v, want %v", i, d, want[i])
		}
		if i > 0 && d < backoffs[i-1] {
			t.Errorf("backoffs must be non-decreasing, got %v", backoffs)
		}
		if d > bound {
			t.Errorf("backoff %v exceeds bound %v", d, bound)
		}
	}
}

func TestFetchHonorsCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	e := NewExecutor(fastConfig(), stats.NewTracker(), zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Fetch(ctx, srv.URL, "testsrc", nil); err == nil {
		t.Errorf("cancelled context should abort the fetch")
	}
}

func TestRandomUserAgentNonEmpty(t *testing.T) {
	for i := 0; i < 20; i++ {
		if randomUserAgent() == "" {
			t.Fatalf("empty user agent")
		}
	}
}
