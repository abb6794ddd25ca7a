package fetch

import (
	"sync"
	"time"
)

// SourceHealth tracks one source's failure streak.
type SourceHealth struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccess         time.Time `json:"last_success"`
}

// Health keeps per-source failure streaks. The counter is source-scoped:
// one flaky site never trips alerts for the healthy ones.
type Health struct {
	mu      sync.Mutex
	sources map[string]*SourceHealth
}

func NewHealth() *Health {
	return &Health{sources: make(map[string]*SourceHealth)}
}

func (h *Health) RecordSuccess(source string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.sourceLocked(source)
	s.ConsecutiveFailures = 0
	s.LastSuccess = time.Now()
}

// RecordFailure bumps the streak and returns the new count.
func (h *Health) RecordFailure(source string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.sourceLocked(source)
	s.ConsecutiveFailures++
	return s.ConsecutiveFailures
}

func (h *Health) Snapshot() map[string]SourceHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]SourceHealth, len(h.sources))
	for name, s := range h.sources {
		out[name] = *s
	}
	return out
}

func (h *Health) sourceLocked(source string) *SourceHealth {
	s, ok := h.sources[source]
	if !ok {
		s = &SourceHealth{}
		h.sources[source] = s
	}
	return s
}
