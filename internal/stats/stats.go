package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// SourceStats is the per-source counter breakdown.
type SourceStats struct {
	Scraped int `json:"scraped"`
	New     int `json:"new"`
	Errors  int `json:"errors"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	TotalScraped int                    `json:"total_scraped"`
	NewJobs      int                    `json:"new_jobs"`
	Duplicates   int                    `json:"duplicate_jobs"`
	Filtered     int                    `json:"filtered_jobs"`
	Errors       int                    `json:"errors"`
	Cycles       int                    `json:"cycles_completed"`
	Since        time.Time              `json:"since"`
	Sources      map[string]SourceStats `json:"sources"`
}

// Tracker accumulates pipeline counters. Every stage records into it;
// the health monitor and the control surface read snapshots.
type Tracker struct {
	mu      sync.Mutex
	totals  Snapshot
	sources map[string]*SourceStats
}

func NewTracker() *Tracker {
	return &Tracker{
		totals:  Snapshot{Since: time.Now()},
		sources: make(map[string]*SourceStats),
	}
}

func (t *Tracker) sourceLocked(name string) *SourceStats {
	s, ok := t.sources[name]
	if !ok {
		s = &SourceStats{}
		t.sources[name] = s
	}
	return s
}

func (t *Tracker) RecordScraped(source string, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals.TotalScraped += n
	t.sourceLocked(source).Scraped += n
}

func (t *Tracker) RecordNew(source string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals.NewJobs++
	t.sourceLocked(source).New++
}

func (t *Tracker) RecordDuplicate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals.Duplicates++
}

func (t *Tracker) RecordFiltered() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals.Filtered++
}

// RecordError counts an error; source may be empty for errors not tied
// to one source (delivery failures, cycle failures).
func (t *Tracker) RecordError(source string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals.Errors++
	if source != "" {
		t.sourceLocked(source).Errors++
	}
}

func (t *Tracker) RecordCycle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals.Cycles++
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.totals
	snap.Sources = make(map[string]SourceStats, len(t.sources))
	for name, s := range t.sources {
		snap.Sources[name] = *s
	}
	return snap
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals = Snapshot{Since: time.Now()}
	t.sources = make(map[string]*SourceStats)
}

// Summary renders the counters as the periodic stats message.
func (t *Tracker) Summary() string {
	snap := t.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "Scraping statistics\n\n")
	fmt.Fprintf(&b, "Runtime: %s\n", time.Since(snap.Since).Round(time.Second))
	fmt.Fprintf(&b, "Cycles: %d\n", snap.Cycles)
	fmt.Fprintf(&b, "Total scraped: %d\n", snap.TotalScraped)
	fmt.Fprintf(&b, "New jobs: %d\n", snap.NewJobs)
	fmt.Fprintf(&b, "Duplicates: %d\n", snap.Duplicates)
	fmt.Fprintf(&b, "Filtered: %d\n", snap.Filtered)
	fmt.Fprintf(&b, "Errors: %d\n", snap.Errors)

	if len(snap.Sources) > 0 {
		b.WriteString("\nPer-source:\n")
		names := make([]string, 0, len(snap.Sources))
		for name := range snap.Sources {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s := snap.Sources[name]
			fmt.Fprintf(&b, "%s: %d scraped, %d new, %d errors\n", name, s.Scraped, s.New, s.Errors)
		}
	}
	return b.String()
}
