package store

import (
	"sync"
	"time"
)

// QueryTracker accumulates per-call-name invocation counts and cumulative
// latency, exposed to the MCP layer's resource://tooling/metrics endpoint
// and to the slow-query warning path in withRetry callers.
type QueryTracker struct {
	mu    sync.Mutex
	calls map[string]*callStats
}

type callStats struct {
	Count    int64
	TotalDur time.Duration
}

// NewQueryTracker returns an empty tracker.
func NewQueryTracker() *QueryTracker {
	return &QueryTracker{calls: make(map[string]*callStats)}
}

// Observe records one invocation of name taking d.
func (t *QueryTracker) Observe(name string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.calls[name]
	if !ok {
		s = &callStats{}
		t.calls[name] = s
	}
	s.Count++
	s.TotalDur += d
}

// Snapshot is a point-in-time copy of one call's accumulated stats.
type Snapshot struct {
	Name       string
	Count      int64
	TotalMS    float64
	AverageMS  float64
}

// Snapshot returns a stable copy of all tracked call stats.
func (t *QueryTracker) Snapshot() []Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Snapshot, 0, len(t.calls))
	for name, s := range t.calls {
		avg := 0.0
		if s.Count > 0 {
			avg = float64(s.TotalDur.Milliseconds()) / float64(s.Count)
		}
		out = append(out, Snapshot{
			Name:      name,
			Count:     s.Count,
			TotalMS:   float64(s.TotalDur.Milliseconds()),
			AverageMS: avg,
		})
	}
	return out
}

// track times fn under name and records it in the tracker.
func (s *Store) track(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	s.tracker.Observe(name, elapsed)
	if elapsed > s.slowQuery {
		s.logger.Warn("slow store call", "call", name, "duration_ms", elapsed.Milliseconds())
	}
	return err
}
