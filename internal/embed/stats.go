package embed

import (
	"sort"
	"sync"
	"time"
)

type call struct {
	at         time.Time
	durationMs int64
	inputs     int
	failed     bool
}

// StatsSnapshot aggregates embedding calls inside the window. Latency
// fields cover successful calls only.
type StatsSnapshot struct {
	Calls      int     `json:"calls"`
	Failures   int     `json:"failures"`
	Inputs     int     `json:"inputs"`
	MinMs      int64   `json:"min_ms"`
	MaxMs      int64   `json:"max_ms"`
	AvgMs      float64 `json:"avg_ms"`
	P50Ms      float64 `json:"p50_ms"`
	P95Ms      float64 `json:"p95_ms"`
	PerInputMs float64 `json:"per_input_ms"`
}

// Stats tracks recent embedding calls within a rolling window.
type Stats struct {
	mu     sync.Mutex
	calls  []call
	maxAge time.Duration
	now    func() time.Time
}

func NewStats(maxAge time.Duration) *Stats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Stats{
		calls:  make([]call, 0, 256),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Record adds a successful call that embedded inputs texts.
func (s *Stats) Record(durationMs int64, inputs int) {
	s.add(call{durationMs: max(durationMs, 0), inputs: inputs})
}

// RecordFailure adds a call that returned an error.
func (s *Stats) RecordFailure(durationMs int64) {
	s.add(call{durationMs: max(durationMs, 0), failed: true})
}

func (s *Stats) add(c call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.at = s.now()
	s.pruneLocked(c.at)
	s.calls = append(s.calls, c)
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	snap := StatsSnapshot{Calls: len(s.calls)}

	values := make([]int64, 0, len(s.calls))
	var sum int64
	for _, c := range s.calls {
		if c.failed {
			snap.Failures++
			continue
		}
		values = append(values, c.durationMs)
		sum += c.durationMs
		snap.Inputs += c.inputs
	}
	if len(values) == 0 {
		return snap
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	if snap.Inputs > 0 {
		snap.PerInputMs = float64(sum) / float64(snap.Inputs)
	}
	return snap
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	keep := s.calls[:0]
	for _, c := range s.calls {
		if !c.at.Before(cutoff) {
			keep = append(keep, c)
		}
	}
	s.calls = keep
}

// percentile interpolates linearly between closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}
	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*weight
}
