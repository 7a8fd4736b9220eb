package camera

import (
	"sort"
	"sync"
	"time"
)

// statsWindow bounds the number of capture durations retained for
// percentile computation.
const statsWindow = 256

// CaptureStats is a snapshot of one camera's capture statistics.
type CaptureStats struct {
	Captures   int64
	Failures   int64
	Recoveries int64

	// SuccessRate is Captures / (Captures + Failures), 0 when idle.
	SuccessRate float64

	// Duration percentiles over the most recent capture window.
	P50 time.Duration
	P90 time.Duration
	P99 time.Duration
}

// statsCollector accumulates capture outcomes. Safe for concurrent use.
type statsCollector struct {
	mu         sync.Mutex
	captures   int64
	failures   int64
	recoveries int64
	durations  []time.Duration
	next       int
	filled     bool
}

func newStatsCollector() *statsCollector {
	return &statsCollector{durations: make([]time.Duration, statsWindow)}
}

func (s *statsCollector) recordCapture(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures++
	s.durations[s.next] = d
	s.next++
	if s.next == len(s.durations) {
		s.next = 0
		s.filled = true
	}
}

func (s *statsCollector) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
}

func (s *statsCollector) recordRecovery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recoveries++
}

// snapshot computes the current statistics.
func (s *statsCollector) snapshot() CaptureStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := CaptureStats{
		Captures:   s.captures,
		Failures:   s.failures,
		Recoveries: s.recoveries,
	}
	if total := s.captures + s.failures; total > 0 {
		stats.SuccessRate = float64(s.captures) / float64(total)
	}

	n := s.next
	if s.filled {
		n = len(s.durations)
	}
	if n == 0 {
		return stats
	}

	window := make([]time.Duration, n)
	copy(window, s.durations[:n])
	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })

	stats.P50 = percentile(window, 50)
	stats.P90 = percentile(window, 90)
	stats.P99 = percentile(window, 99)
	return stats
}

// percentile returns the nearest-rank percentile of a sorted window.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
