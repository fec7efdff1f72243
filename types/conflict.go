package types

import "time"

// ConflictKind classifies a cross-modal conflict.
type ConflictKind string

const (
	// ConflictResource means more than two channels are simultaneously active.
	ConflictResource ConflictKind = "resource"
	// ConflictIntent means more than one channel reports high-confidence input.
	ConflictIntent ConflictKind = "intent"
	// ConflictPerformance means total processing latency exceeds the SLA threshold.
	ConflictPerformance ConflictKind = "performance"
)

// ConflictPriority orders conflicts for resolution.
type ConflictPriority string

const (
	// PriorityHigh conflicts are resolved before medium ones.
	PriorityHigh ConflictPriority = "high"
	// PriorityMedium is the default for intent conflicts.
	PriorityMedium ConflictPriority = "medium"
	// PriorityLow is reserved for advisory conflicts.
	PriorityLow ConflictPriority = "low"
)

// ResolutionStrategy names a fixed conflict resolution behavior.
type ResolutionStrategy string

const (
	// StrategyPrioritizeConfidence keeps the highest-confidence channel
	// active and deactivates the rest.
	StrategyPrioritizeConfidence ResolutionStrategy = "prioritize_highest_confidence"
	// StrategyCombineInputs merges the conflicting channels' inputs into
	// one combined intent via an intent-combine sync.
	StrategyCombineInputs ResolutionStrategy = "combine_inputs"
	// StrategyOptimizeSlowest flags the slowest channel as the bottleneck
	// and triggers its optimization hook.
	StrategyOptimizeSlowest ResolutionStrategy = "optimize_slowest"
)

// Valid returns true if s is a known resolution strategy.
func (s ResolutionStrategy) Valid() bool {
	switch s {
	case StrategyPrioritizeConfidence, StrategyCombineInputs, StrategyOptimizeSlowest:
		return true
	}
	return false
}

// ModalityConflict is one detected cross-modal conflict.
// Created only by the detector, resolved exactly once by the resolver,
// and retained for the session for audit.
type ModalityConflict struct {
	// ID is the unique conflict identifier.
	ID string `json:"id"`
	// Channels are the channels involved, in static priority order.
	Channels []Channel `json:"channels"`
	// Kind classifies the conflict.
	Kind ConflictKind `json:"kind"`
	// Priority orders resolution.
	Priority ConflictPriority `json:"priority"`
	// Strategy is the resolution strategy chosen at detection time.
	Strategy ResolutionStrategy `json:"strategy"`
	// DetectedAt is when the detector emitted the conflict.
	DetectedAt time.Time `json:"detected_at"`
	// Resolved is set exactly once by the resolver.
	Resolved bool `json:"resolved"`
	// ResolvedAt is when the conflict was resolved, zero if open.
	ResolvedAt time.Time `json:"resolved_at,omitzero"`
}

// Open returns true if the conflict has not been resolved yet.
func (c *ModalityConflict) Open() bool {
	return !c.Resolved
}

// SameScope reports whether the conflict covers the same kind and channel
// set as the given detection candidate. Used for per-tick idempotence:
// an open conflict with the same scope is not re-emitted.
func (c *ModalityConflict) SameScope(kind ConflictKind, channels []Channel) bool {
	if c.Kind != kind || len(c.Channels) != len(channels) {
		return false
	}
	set := make(map[Channel]bool, len(c.Channels))
	for _, ch := range c.Channels {
		set[ch] = true
	}
	for _, ch := range channels {
		if !set[ch] {
			return false
		}
	}
	return true
}
