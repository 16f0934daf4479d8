// Package monitor tracks evaluation counters and latency for the metrics
// endpoint.
package monitor

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks evaluation activity since startup.
type Metrics struct {
	evaluations uint64
	signals     uint64
	holds       uint64
	timeouts    uint64
	errors      uint64

	EvalLatency *LatencyHistogram

	startedAt time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		EvalLatency: NewLatencyHistogram(1000),
		startedAt:   time.Now(),
	}
}

// RecordEvaluation classifies one finished run.
func (m *Metrics) RecordEvaluation(signal string, reason string, d time.Duration) {
	atomic.AddUint64(&m.evaluations, 1)
	switch {
	case signal != "hold":
		atomic.AddUint64(&m.signals, 1)
	default:
		atomic.AddUint64(&m.holds, 1)
	}
	if strings.HasPrefix(reason, "Execution error") {
		atomic.AddUint64(&m.errors, 1)
	}
	m.EvalLatency.Record(float64(d.Milliseconds()))
}

// RecordTimeout counts a run that hit the wall-clock budget.
func (m *Metrics) RecordTimeout() {
	atomic.AddUint64(&m.timeouts, 1)
}

// Snapshot is the JSON shape served on /api/metrics.
type Snapshot struct {
	Evaluations uint64       `json:"evaluations"`
	Signals     uint64       `json:"signals"`
	Holds       uint64       `json:"holds"`
	Timeouts    uint64       `json:"timeouts"`
	Errors      uint64       `json:"errors"`
	Latency     LatencyStats `json:"latency_ms"`
	UptimeSec   int64        `json:"uptime_sec"`
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Evaluations: atomic.LoadUint64(&m.evaluations),
		Signals:     atomic.LoadUint64(&m.signals),
		Holds:       atomic.LoadUint64(&m.holds),
		Timeouts:    atomic.LoadUint64(&m.timeouts),
		Errors:      atomic.LoadUint64(&m.errors),
		Latency:     m.EvalLatency.Stats(),
		UptimeSec:   int64(time.Since(m.startedAt).Seconds()),
	}
}

// LatencyHistogram tracks latency samples in a sliding window.
type LatencyHistogram struct {
	mu      sync.Mutex
	samples []float64
	maxSize int
}

// LatencyStats summarizes the current window.
type LatencyStats struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	Max   float64 `json:"max"`
}

func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
}

// Stats computes summary statistics for the current window.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	return LatencyStats{
		Count: n,
		P50:   sorted[n/2],
		P95:   sorted[min(n-1, n*95/100)],
		Max:   sorted[n-1],
	}
}
