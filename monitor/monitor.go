// Package monitor implements the cross-modal performance monitor.
//
// The monitor aggregates per-channel processing latency into a total,
// compares it against the configured SLA threshold, and attributes the
// bottleneck to the slowest active channel. It is a leaf package over
// registry snapshots; metric emission goes through the Telemetry
// boundary, fire-and-forget.
package monitor

import (
	"sync"
	"time"

	"github.com/pithecene-io/tandem/registry"
	"github.com/pithecene-io/tandem/types"
)

// Telemetry receives named metric emissions. Implementations must not
// block; delivery is fire-and-forget.
type Telemetry interface {
	Emit(name string, value float64, tags map[string]string)
}

// NopTelemetry discards all metrics.
type NopTelemetry struct{}

// Emit implements Telemetry.
func (NopTelemetry) Emit(string, float64, map[string]string) {}

// Metric names emitted by the engine.
const (
	MetricTotalLatency   = "total_latency"
	MetricSLACompliance  = "sla_compliance"
	MetricSyncDuration   = "sync_duration"
	MetricFusionDuration = "fusion_duration"
)

// Snapshot is an immutable point-in-time view of performance state.
// Safe to read concurrently after creation.
type Snapshot struct {
	// TotalLatency is the sum of processing latency over active channels.
	TotalLatency time.Duration
	// Threshold is the configured SLA latency ceiling.
	Threshold time.Duration
	// SLACompliant is true while TotalLatency <= Threshold.
	SLACompliant bool
	// Bottleneck is the active channel with the highest latency, empty
	// when no channel is active.
	Bottleneck types.Channel
	// PerChannel is the latency of each active channel.
	PerChannel map[types.Channel]time.Duration
	// Ticks is the number of observations so far.
	Ticks int64
	// Violations is the number of observations that missed the SLA.
	Violations int64
	// ObservedAt is when the last observation ran.
	ObservedAt time.Time
}

// Monitor recomputes performance state on every tick.
// Thread-safe via sync.Mutex. Observe and Snapshot are nil-receiver safe.
type Monitor struct {
	mu        sync.Mutex
	threshold time.Duration
	telemetry Telemetry
	now       func() time.Time

	last       Snapshot
	ticks      int64
	violations int64
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock overrides the monitor clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// New creates a monitor with the given SLA threshold.
// A nil telemetry sink falls back to NopTelemetry.
func New(threshold time.Duration, telemetry Telemetry, opts ...Option) *Monitor {
	if telemetry == nil {
		telemetry = NopTelemetry{}
	}
	m := &Monitor{
		threshold: threshold,
		telemetry: telemetry,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Observe recomputes performance state from a registry snapshot and
// emits total_latency and sla_compliance metrics.
func (m *Monitor) Observe(snap *registry.Snapshot) Snapshot {
	if m == nil {
		return Snapshot{}
	}

	total := snap.TotalLatency()
	bottleneck, _ := snap.Slowest()

	perChannel := make(map[types.Channel]time.Duration)
	for _, state := range snap.States() {
		if state.Active {
			perChannel[state.Channel] = state.ProcessingLatency
		}
	}

	compliant := total <= m.threshold

	m.mu.Lock()
	m.ticks++
	if !compliant {
		m.violations++
	}
	result := Snapshot{
		TotalLatency: total,
		Threshold:    m.threshold,
		SLACompliant: compliant,
		Bottleneck:   bottleneck,
		PerChannel:   perChannel,
		Ticks:        m.ticks,
		Violations:   m.violations,
		ObservedAt:   m.now(),
	}
	m.last = result
	m.mu.Unlock()

	m.telemetry.Emit(MetricTotalLatency, float64(total.Milliseconds()), nil)
	m.telemetry.Emit(MetricSLACompliance, boolMetric(compliant), nil)

	return result
}

// ValidateSLA reports whether the most recent observation met the SLA.
// Returns true before the first observation.
func (m *Monitor) ValidateSLA() bool {
	if m == nil {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticks == 0 {
		return true
	}
	return m.last.SLACompliant
}

// Snapshot returns the most recent observation.
func (m *Monitor) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.last
	s.PerChannel = make(map[types.Channel]time.Duration, len(m.last.PerChannel))
	for ch, d := range m.last.PerChannel {
		s.PerChannel[ch] = d
	}
	return s
}

// RecordSyncDuration emits a sync_duration metric tagged by sync kind.
func (m *Monitor) RecordSyncDuration(kind types.SyncKind, d time.Duration) {
	if m == nil {
		return
	}
	m.telemetry.Emit(MetricSyncDuration, float64(d.Milliseconds()), map[string]string{"kind": string(kind)})
}

// RecordFusionDuration emits a fusion_duration metric.
func (m *Monitor) RecordFusionDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.telemetry.Emit(MetricFusionDuration, float64(d.Milliseconds()), nil)
}

func boolMetric(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
