// Package metrics provides per-session telemetry collection.
//
// The Collector implements the performance monitor's Telemetry boundary
// and accumulates named emissions during a single coordination session.
// It is a leaf package with no internal dependencies; emission names are
// plain strings so the package stays decoupled from the monitor.
package metrics

import "sync"

// Stat is the accumulated state of one named metric.
type Stat struct {
	// Count is the number of emissions seen.
	Count int64
	// Sum is the running total of emitted values.
	Sum float64
	// Last is the most recently emitted value.
	Last float64
	// Min and Max track the emitted value range. Zero until the first
	// emission.
	Min float64
	Max float64
}

// Mean returns the average emitted value, 0 before the first emission.
func (s Stat) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// Snapshot is an immutable point-in-time view of all collected metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after
// creation.
type Snapshot struct {
	// SessionID is the session dimension label.
	SessionID string
	// Stats maps metric name to accumulated state.
	Stats map[string]Stat
}

// Collector accumulates metric emissions during a single session.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe so a
// host that opts out of telemetry can pass a nil collector around.
type Collector struct {
	mu        sync.Mutex
	sessionID string
	stats     map[string]*Stat
}

// NewCollector creates a Collector labeled with the session dimension.
func NewCollector(sessionID string) *Collector {
	return &Collector{
		sessionID: sessionID,
		stats:     make(map[string]*Stat),
	}
}

// Emit records one metric emission. Implements the monitor's Telemetry
// boundary; tags are accepted for interface compatibility and ignored,
// the session dimension is fixed at construction.
func (c *Collector) Emit(name string, value float64, _ map[string]string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.stats[name]
	if !ok {
		s = &Stat{Min: value, Max: value}
		c.stats[name] = s
	}
	s.Count++
	s.Sum += value
	s.Last = value
	if value < s.Min {
		s.Min = value
	}
	if value > s.Max {
		s.Max = value
	}
}

// Stat returns the accumulated state of one metric name.
func (c *Collector) Stat(name string) Stat {
	if c == nil {
		return Stat{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stats[name]; ok {
		return *s
	}
	return Stat{}
}

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := make(map[string]Stat, len(c.stats))
	for name, s := range c.stats {
		stats[name] = *s
	}
	return Snapshot{
		SessionID: c.sessionID,
		Stats:     stats,
	}
}
