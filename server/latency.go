package server

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps the most recent request durations in a ring buffer
// and reports percentiles over them.
type LatencyTracker struct {
	mu          sync.Mutex
	samples     []time.Duration
	writeIndex  int
	sampleCount int64 // monotonic
}

// LatencyStats is a snapshot of the tracked window.
type LatencyStats struct {
	Requests int64   `json:"requests"`
	MeanMs   float64 `json:"mean_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P99Ms    float64 `json:"p99_ms"`
}

// NewLatencyTracker creates a tracker over the last window requests.
// window <= 0 means 1000.
func NewLatencyTracker(window int) *LatencyTracker {
	if window <= 0 {
		window = 1000
	}
	return &LatencyTracker{samples: make([]time.Duration, window)}
}

// Record adds one request duration.
func (t *LatencyTracker) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples[t.writeIndex] = d
	t.writeIndex = (t.writeIndex + 1) % len(t.samples)
	t.sampleCount++
}

// Stats returns mean and percentiles of the current window.
func (t *LatencyTracker) Stats() LatencyStats {
	t.mu.Lock()
	n := t.effectiveSampleCount()
	sorted := make([]time.Duration, n)
	copy(sorted, t.samples[:n])
	total := t.sampleCount
	t.mu.Unlock()

	stats := LatencyStats{Requests: total}
	if n == 0 {
		return stats
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	stats.MeanMs = ms(sum / time.Duration(n))
	stats.P50Ms = ms(percentile(sorted, 0.50))
	stats.P99Ms = ms(percentile(sorted, 0.99))
	return stats
}

func (t *LatencyTracker) effectiveSampleCount() int {
	if t.sampleCount < int64(len(t.samples)) {
		return int(t.sampleCount)
	}
	return len(t.samples)
}

// percentile picks the p-th sample (0 < p < 1) of an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	index := int(float64(len(sorted)-1) * p)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
