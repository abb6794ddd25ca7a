package dedupe

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tejaschuahan/job-scraper-bot/internal/domain"

	_ "modernc.org/sqlite"
)

// Store is the durable seen-set: every delivered listing's fingerprint,
// persisted in sqlite and mirrored in memory for O(1) membership checks.
type Store struct {
	db  *sql.DB
	log *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

func Open(path string, log *zap.Logger) (*Store, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1) // sqlite wants 1 writer
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:   db,
		log:  log,
		seen: make(map[string]struct{}),
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS jobs (
  job_hash TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  company TEXT NOT NULL,
  url TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  salary TEXT NOT NULL DEFAULT '',
  job_type TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  site TEXT NOT NULL,
  scraped_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_scraped_at ON jobs(scraped_at);
CREATE INDEX IF NOT EXISTS idx_jobs_site ON jobs(site);
`)
	return err
}

// LoadSeen fills the in-memory set with fingerprints persisted within the
// retention window. This is the only place age filtering happens; rows
// outside the window simply never make it into memory.
func (s *Store) LoadSeen(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)

	rows, err := s.db.QueryContext(ctx, `SELECT job_hash FROM jobs WHERE scraped_at > ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("load seen: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return 0, err
		}
		s.seen[h] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	s.log.Info("loaded seen fingerprints", zap.Int("count", len(s.seen)), zap.Int("retention_days", retentionDays))
	return len(s.seen), nil
}

func (s *Store) IsSeen(fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[fingerprint]
	return ok
}

// Commit persists the listing and adds its fingerprint to the in-memory
// set. Idempotent: a duplicate-key insert is swallowed and the set add is
// a no-op. Callers must Commit before enqueueing for delivery, so a crash
// between the two loses at worst a notification, never delivers twice.
func (s *Store) Commit(ctx context.Context, l domain.Listing, fingerprint string) error {
	scrapedAt := l.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO jobs(job_hash, title, company, url, location, salary, job_type, description, site, scraped_at)
VALUES(?,?,?,?,?,?,?,?,?,?);`,
		fingerprint,
		l.Title,
		l.Company,
		l.URL,
		l.Location,
		l.Salary,
		l.JobType,
		l.Description,
		l.Source,
		scrapedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("commit listing: %w", err)
	}

	s.mu.Lock()
	s.seen[fingerprint] = struct{}{}
	s.mu.Unlock()
	return nil
}

// CleanupOld deletes rows older than the retention window. Run at
// startup; there is no background eviction.
func (s *Store) CleanupOld(retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)
	res, err := s.db.Exec(`DELETE FROM jobs WHERE scraped_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
