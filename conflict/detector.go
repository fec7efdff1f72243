package conflict

import (
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/tandem/registry"
	"github.com/pithecene-io/tandem/types"
)

// Detection heuristics defaults.
const (
	// DefaultMaxActiveChannels is the number of simultaneously active
	// channels tolerated before a resource conflict is raised.
	DefaultMaxActiveChannels = 2
	// DefaultIntentThreshold is the confidence above which a channel is
	// considered to carry a distinct user intent.
	DefaultIntentThreshold = 0.8
)

// DetectorConfig tunes the detection heuristics.
type DetectorConfig struct {
	// MaxActiveChannels triggers a resource conflict when exceeded.
	MaxActiveChannels int
	// IntentThreshold triggers an intent conflict when more than one
	// channel reports confidence above it.
	IntentThreshold float64
	// MaxTotalLatency triggers a performance conflict when the summed
	// processing latency of active channels exceeds it.
	MaxTotalLatency time.Duration
}

// Detector inspects registry snapshots on the engine tick and emits
// conflict records. Detection is idempotent per tick: an open conflict
// covering the same kind and channel set is not re-emitted.
type Detector struct {
	config DetectorConfig
	now    func() time.Time
	newID  func() string
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithClock overrides the detector clock. Used in tests.
func WithClock(now func() time.Time) DetectorOption {
	return func(d *Detector) {
		d.now = now
	}
}

// WithIDFunc overrides conflict id generation. Used in tests.
func WithIDFunc(newID func() string) DetectorOption {
	return func(d *Detector) {
		d.newID = newID
	}
}

// NewDetector creates a detector, filling config zero-values with defaults.
func NewDetector(config DetectorConfig, opts ...DetectorOption) *Detector {
	if config.MaxActiveChannels <= 0 {
		config.MaxActiveChannels = DefaultMaxActiveChannels
	}
	if config.IntentThreshold <= 0 {
		config.IntentThreshold = DefaultIntentThreshold
	}
	d := &Detector{
		config: config,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect runs all heuristics against the snapshot and returns the new
// conflicts, skipping any whose scope matches an open conflict.
func (d *Detector) Detect(snap *registry.Snapshot, open []types.ModalityConflict) []types.ModalityConflict {
	var found []types.ModalityConflict

	if c, ok := d.detectResource(snap); ok {
		found = append(found, c)
	}
	if c, ok := d.detectIntent(snap); ok {
		found = append(found, c)
	}
	if c, ok := d.detectPerformance(snap); ok {
		found = append(found, c)
	}

	// Idempotence filter: drop candidates already covered by an open
	// conflict with the same kind and channel set.
	out := found[:0]
	for _, candidate := range found {
		duplicate := false
		for i := range open {
			if open[i].SameScope(candidate.Kind, candidate.Channels) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, candidate)
		}
	}
	return out
}

// detectResource raises one conflict covering all active channels when
// more than MaxActiveChannels are simultaneously active.
func (d *Detector) detectResource(snap *registry.Snapshot) (types.ModalityConflict, bool) {
	active := snap.ActiveChannels()
	if len(active) <= d.config.MaxActiveChannels {
		return types.ModalityConflict{}, false
	}
	return types.ModalityConflict{
		ID:         d.newID(),
		Channels:   active,
		Kind:       types.ConflictResource,
		Priority:   types.PriorityHigh,
		Strategy:   types.StrategyPrioritizeConfidence,
		DetectedAt: d.now(),
	}, true
}

// detectIntent raises a conflict covering every channel whose confidence
// exceeds the intent threshold, when more than one such channel exists.
func (d *Detector) detectIntent(snap *registry.Snapshot) (types.ModalityConflict, bool) {
	var contenders []types.Channel
	for _, state := range snap.States() {
		if state.Active && state.Confidence > d.config.IntentThreshold {
			contenders = append(contenders, state.Channel)
		}
	}
	if len(contenders) <= 1 {
		return types.ModalityConflict{}, false
	}
	return types.ModalityConflict{
		ID:         d.newID(),
		Channels:   contenders,
		Kind:       types.ConflictIntent,
		Priority:   types.PriorityMedium,
		Strategy:   types.StrategyCombineInputs,
		DetectedAt: d.now(),
	}, true
}

// detectPerformance raises a conflict covering all active channels when
// total processing latency exceeds the SLA threshold.
func (d *Detector) detectPerformance(snap *registry.Snapshot) (types.ModalityConflict, bool) {
	if d.config.MaxTotalLatency <= 0 {
		return types.ModalityConflict{}, false
	}
	if snap.TotalLatency() <= d.config.MaxTotalLatency {
		return types.ModalityConflict{}, false
	}
	active := snap.ActiveChannels()
	if len(active) == 0 {
		return types.ModalityConflict{}, false
	}
	return types.ModalityConflict{
		ID:         d.newID(),
		Channels:   active,
		Kind:       types.ConflictPerformance,
		Priority:   types.PriorityHigh,
		Strategy:   types.StrategyOptimizeSlowest,
		DetectedAt: d.now(),
	}, true
}
