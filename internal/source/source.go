// Package source defines the collector contract and the registry the
// scheduler dispatches through. Adding a site means registering a new
// Collector; the scheduler itself never branches per source.
package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
)

// MaxPerCall bounds how many listings one Collect call may return, to
// keep downstream load predictable.
const MaxPerCall = 20

// Collector turns a search query into candidate listings from one
// source. Implementations must not panic past this boundary: a parse
// failure is an empty list plus an error statistic, and the returned
// error is informational for the scheduler's log.
type Collector interface {
	Name() string
	Collect(ctx context.Context, query string) ([]domain.Listing, error)
}

// Registry is the name-keyed set of known collectors.
type Registry struct {
	mu         sync.Mutex
	collectors map[string]Collector
}

func NewRegistry() *Registry {
	return &Registry{collectors: make(map[string]Collector)}
}

func (r *Registry) Register(c Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := c.Name()
	if _, ok := r.collectors[name]; ok {
		return fmt.Errorf("collector %q already registered", name)
	}
	r.collectors[name] = c
	return nil
}

func (r *Registry) Get(name string) (Collector, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.collectors[name]
	return c, ok
}

// Names returns registered collector names in sorted order, which is
// also the round-robin order the scheduler delivers in.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// All returns the collectors sorted by name.
func (r *Registry) All() []Collector {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Collector, 0, len(names))
	for _, name := range names {
		out = append(out, r.collectors[name])
	}
	return out
}
