package metrics

import (
	"math"
	"slices"
	"sync"
	"time"
)

const defaultHistogramSize = 1000

// Histogram keeps the most recent durations in a fixed-size ring and
// summarises them on demand. Values are reported in milliseconds.
type Histogram struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
}

// NewHistogram creates a histogram holding at most size samples.
func NewHistogram(size int) *Histogram {
	if size <= 0 {
		size = defaultHistogramSize
	}
	return &Histogram{samples: make([]float64, size)}
}

// Record adds a sample, overwriting the oldest once the ring is full.
func (h *Histogram) Record(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples[h.next] = float64(d.Microseconds()) / 1000
	h.next++
	if h.next == len(h.samples) {
		h.next = 0
		h.full = true
	}
}

// Count returns the number of retained samples.
func (h *Histogram) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.countLocked()
}

func (h *Histogram) countLocked() int {
	if h.full {
		return len(h.samples)
	}
	return h.next
}

// Reset drops every sample.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next = 0
	h.full = false
}

// Summary returns the mean, min, max and p50/p95/p99 of the retained samples.
// All values are zero when there are none.
func (h *Histogram) Summary() LatencyStats {
	h.mu.Lock()
	sorted := slices.Clone(h.samples[:h.countLocked()])
	h.mu.Unlock()

	if len(sorted) == 0 {
		return LatencyStats{}
	}
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return LatencyStats{
		Mean:  sum / float64(len(sorted)),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		P99:   percentile(sorted, 99),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Count: len(sorted),
	}
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	rank := p / 100 * float64(len(sorted)-1)
	lo, hi := int(math.Floor(rank)), int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
