package registry

import (
	"time"

	"github.com/pithecene-io/tandem/types"
)

// Snapshot is an immutable point-in-time view of all channel states.
// Safe to read concurrently; the registry publishes a fresh snapshot on
// every mutation and never edits one in place.
type Snapshot struct {
	version int64
	takenAt time.Time
	primary types.Channel
	states  map[types.Channel]types.ModalityState
}

// Version is the monotonic snapshot version, starting at 1.
func (s *Snapshot) Version() int64 {
	return s.version
}

// TakenAt is when the snapshot was published.
func (s *Snapshot) TakenAt() time.Time {
	return s.takenAt
}

// Primary is the current primary channel, empty if none is set.
func (s *Snapshot) Primary() types.Channel {
	return s.primary
}

// State returns a copy of one channel's state.
func (s *Snapshot) State(ch types.Channel) (types.ModalityState, bool) {
	state, ok := s.states[ch]
	return state, ok
}

// States returns copies of all channel states in static priority order.
func (s *Snapshot) States() []types.ModalityState {
	out := make([]types.ModalityState, 0, len(s.states))
	for _, ch := range types.Channels() {
		if state, ok := s.states[ch]; ok {
			out = append(out, state)
		}
	}
	return out
}

// ActiveChannels returns all channels with active=true, in priority order.
func (s *Snapshot) ActiveChannels() []types.Channel {
	var out []types.Channel
	for _, ch := range types.Channels() {
		if state, ok := s.states[ch]; ok && state.Active {
			out = append(out, ch)
		}
	}
	return out
}

// TotalLatency sums processing latency over active channels.
func (s *Snapshot) TotalLatency() time.Duration {
	var total time.Duration
	for _, state := range s.states {
		if state.Active {
			total += state.ProcessingLatency
		}
	}
	return total
}

// Slowest returns the active channel with the highest processing latency.
// Returns false when no channel is active. Ties resolve to the earlier
// channel in priority order, keeping bottleneck attribution deterministic.
func (s *Snapshot) Slowest() (types.Channel, bool) {
	var slowest types.Channel
	var max time.Duration
	found := false
	for _, ch := range types.Channels() {
		state, ok := s.states[ch]
		if !ok || !state.Active {
			continue
		}
		if !found || state.ProcessingLatency > max {
			slowest = ch
			max = state.ProcessingLatency
			found = true
		}
	}
	return slowest, found
}

// clone deep-copies the snapshot for the next mutation.
func (s *Snapshot) clone() *Snapshot {
	states := make(map[types.Channel]types.ModalityState, len(s.states))
	for ch, state := range s.states {
		states[ch] = state
	}
	return &Snapshot{
		version: s.version,
		takenAt: s.takenAt,
		primary: s.primary,
		states:  states,
	}
}
