package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// RefreshMetrics tracks aggregate rebuild and read activity.
type RefreshMetrics struct {
	// Rebuild latency per aggregate table (in milliseconds)
	tables *xsync.Map[string, *Histogram]

	// Whole-family rebuild latency (in milliseconds)
	FamilyLatency *Histogram

	// Counters (atomic operations for thread safety)
	TablesRebuilt    atomic.Uint64
	RebuildFailures  atomic.Uint64
	FamiliesRebuilt  atomic.Uint64
	FreshReads       atomic.Uint64
	StaleReads       atomic.Uint64
	ReadRetries      atomic.Uint64
	Invalidations    atomic.Uint64
	CoalescedRefresh atomic.Uint64

	// Start time for uptime calculation
	startTime time.Time
	mu        sync.RWMutex
}

// NewRefreshMetrics creates a new metrics collector.
func NewRefreshMetrics() *RefreshMetrics {
	return &RefreshMetrics{
		tables:        xsync.NewMap[string, *Histogram](),
		FamilyLatency: NewHistogram(1000),
		startTime:     time.Now(),
	}
}

// RecordTableRebuild records a successful rebuild of one table.
func (m *RefreshMetrics) RecordTableRebuild(table string, d time.Duration) {
	h, _ := m.tables.LoadOrCompute(table, func() (*Histogram, bool) {
		return NewHistogram(1000), false
	})
	h.Record(d)
	m.TablesRebuilt.Add(1)
}

// RecordFamilyRebuild records a completed family rebuild.
func (m *RefreshMetrics) RecordFamilyRebuild(d time.Duration) {
	m.FamilyLatency.Record(d)
	m.FamiliesRebuilt.Add(1)
}

// IncrementRebuildFailures increments the count of failed table rebuilds.
func (m *RefreshMetrics) IncrementRebuildFailures() {
	m.RebuildFailures.Add(1)
}

// IncrementFreshReads counts a read that found its family fresh.
func (m *RefreshMetrics) IncrementFreshReads() {
	m.FreshReads.Add(1)
}

// IncrementStaleReads counts a read that found its family stale.
func (m *RefreshMetrics) IncrementStaleReads() {
	m.StaleReads.Add(1)
}

// IncrementReadRetries counts a read retried after its table vanished mid-query.
func (m *RefreshMetrics) IncrementReadRetries() {
	m.ReadRetries.Add(1)
}

// IncrementInvalidations counts an invalidated family.
func (m *RefreshMetrics) IncrementInvalidations() {
	m.Invalidations.Add(1)
}

// IncrementCoalescedRefresh counts a caller that shared another caller's rebuild.
func (m *RefreshMetrics) IncrementCoalescedRefresh() {
	m.CoalescedRefresh.Add(1)
}

// RefreshStats contains the computed statistics from metrics.
type RefreshStats struct {
	// Latency statistics (milliseconds)
	TableLatency  map[string]LatencyStats `json:"table_latency"`
	FamilyLatency LatencyStats            `json:"family_latency"`

	// Counters
	TablesRebuilt    uint64  `json:"tables_rebuilt"`
	RebuildFailures  uint64  `json:"rebuild_failures"`
	FamiliesRebuilt  uint64  `json:"families_rebuilt"`
	FreshReads       uint64  `json:"fresh_reads"`
	StaleReads       uint64  `json:"stale_reads"`
	ReadRetries      uint64  `json:"read_retries"`
	Invalidations    uint64  `json:"invalidations"`
	CoalescedRefresh uint64  `json:"coalesced_refresh"`
	FreshRate        float64 `json:"fresh_rate"` // percentage

	// System info
	Uptime string `json:"uptime"` // human-readable uptime
}

// LatencyStats contains statistics for a latency histogram.
type LatencyStats struct {
	Mean  float64 `json:"mean"`  // milliseconds
	P50   float64 `json:"p50"`   // median
	P95   float64 `json:"p95"`   // 95th percentile
	P99   float64 `json:"p99"`   // 99th percentile
	Min   float64 `json:"min"`   // minimum
	Max   float64 `json:"max"`   // maximum
	Count int     `json:"count"` // number of samples
}

// Tables returns the names of every table with recorded rebuilds, sorted.
func (m *RefreshMetrics) Tables() []string {
	var names []string
	m.tables.Range(func(name string, _ *Histogram) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// GetStats returns a snapshot of the current statistics.
func (m *RefreshMetrics) GetStats() *RefreshStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fresh := m.FreshReads.Load()
	stale := m.StaleReads.Load()

	freshRate := 0.0
	if fresh+stale > 0 {
		freshRate = (float64(fresh) / float64(fresh+stale)) * 100
	}

	tables := make(map[string]LatencyStats)
	m.tables.Range(func(name string, h *Histogram) bool {
		tables[name] = h.Summary()
		return true
	})

	return &RefreshStats{
		TableLatency:     tables,
		FamilyLatency:    m.FamilyLatency.Summary(),
		TablesRebuilt:    m.TablesRebuilt.Load(),
		RebuildFailures:  m.RebuildFailures.Load(),
		FamiliesRebuilt:  m.FamiliesRebuilt.Load(),
		FreshReads:       fresh,
		StaleReads:       stale,
		ReadRetries:      m.ReadRetries.Load(),
		Invalidations:    m.Invalidations.Load(),
		CoalescedRefresh: m.CoalescedRefresh.Load(),
		FreshRate:        freshRate,
		Uptime:           time.Since(m.startTime).Round(time.Second).String(),
	}
}

// Reset clears all metrics.
func (m *RefreshMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tables.Clear()
	m.FamilyLatency.Reset()

	m.TablesRebuilt.Store(0)
	m.RebuildFailures.Store(0)
	m.FamiliesRebuilt.Store(0)
	m.FreshReads.Store(0)
	m.StaleReads.Store(0)
	m.ReadRetries.Store(0)
	m.Invalidations.Store(0)
	m.CoalescedRefresh.Store(0)

	m.startTime = time.Now()
}
