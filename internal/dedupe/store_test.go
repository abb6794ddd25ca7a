package dedupe

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestCommitMarksSeen(t *testing.T) {
	s := openTestStore(t)
	l := domain.Listing{Title: "Data Analyst", Company: "Acme", URL: "https://acme.example/jobs/1", Source: "remotive", ScrapedAt: time.Now()}
	fp := Fingerprint(l)

	if s.IsSeen(fp) {
		t.Fatalf("fingerprint seen before commit")
	}
	if err := s.Commit(context.Background(), l, fp); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !s.IsSeen(fp) {
		t.Errorf("fingerprint not seen after commit")
	}
}

func TestCommitIdempotent(t *testing.T) {
	s := openTestStore(t)
	l := domain.Listing{Title: "Data Analyst", Company: "Acme", URL: "https://acme.example/jobs/1", Source: "remotive", ScrapedAt: time.Now()}
	fp := Fingerprint(l)

	if err := s.Commit(context.Background(), l, fp); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := s.Commit(context.Background(), l, fp); err != nil {
		t.Errorf("second commit should be a no-op, got %v", err)
	}
}

func TestLoadSeenHonorsRetention(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fresh := domain.Listing{Title: "Fresh", Company: "Acme", URL: "https://acme.example/jobs/1", Source: "remotive", ScrapedAt: time.Now()}
	stale := domain.Listing{Title: "Stale", Company: "Acme", URL: "https://acme.example/jobs/2", Source: "remotive", ScrapedAt: time.Now().AddDate(0, 0, -45)}

	if err := s.Commit(ctx, fresh, Fingerprint(fresh)); err != nil {
		t.Fatalf("commit fresh: %v", err)
	}
	if err := s.Commit(ctx, stale, Fingerprint(stale)); err != nil {
		t.Fatalf("commit stale: %v", err)
	}

	// reload into a fresh in-memory set on the same store
	s.mu.Lock()
	s.seen = make(map[string]struct{})
	s.mu.Unlock()

	n, err := s.LoadSeen(ctx, 30)
	if err != nil {
		t.Fatalf("load seen: %v", err)
	}
	if n != 1 {
		t.Errorf("loaded %d fingerprints, want 1", n)
	}
	if !s.IsSeen(Fingerprint(fresh)) {
		t.Errorf("fresh fingerprint missing after reload")
	}
	if s.IsSeen(Fingerprint(stale)) {
		t.Errorf("stale fingerprint should be outside the retention window")
	}
}

func TestCleanupOld(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stale := domain.Listing{Title: "Stale", Company: "Acme", URL: "https://acme.example/jobs/2", Source: "remotive", ScrapedAt: time.Now().AddDate(0, 0, -45)}
	if err := s.Commit(ctx, stale, Fingerprint(stale)); err != nil {
		t.Fatalf("commit: %v", err)
	}

	n, err := s.CleanupOld(30)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("cleaned %d rows, want 1", n)
	}
}
