// Package registry holds the live state of every modality channel.
//
// The registry is the single source of truth for channel state and is
// exclusively owned by the orchestrator. Every mutation replaces the
// current snapshot wholesale; concurrent readers always observe a
// complete, consistent view and never a half-updated state.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pithecene-io/tandem/types"
)

// Sentinel errors for registry command failures.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrChannelUnavailable indicates the channel was never declared available.
	ErrChannelUnavailable = errors.New("channel unavailable")

	// ErrChannelInactive indicates a command that requires an active channel.
	ErrChannelInactive = errors.New("channel inactive")

	// ErrInvalidTransition indicates an illegal state-machine transition.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidConfidence indicates a confidence outside [0, 1].
	ErrInvalidConfidence = errors.New("confidence out of range")
)

// Registry owns the modality state arena.
// Thread-safe: mutations are serialized, reads are lock-free against the
// most recently published snapshot.
type Registry struct {
	mu      sync.Mutex
	current *Snapshot
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the registry clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a registry with one ModalityState per supported channel.
// Channels listed in available start as available; states are never
// removed during a session.
func New(available []types.Channel, opts ...Option) *Registry {
	r := &Registry{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}

	avail := make(map[types.Channel]bool, len(available))
	for _, ch := range available {
		avail[ch] = true
	}

	states := make(map[types.Channel]types.ModalityState, len(types.Channels()))
	for _, ch := range types.Channels() {
		states[ch] = types.ModalityState{
			Channel:   ch,
			Status:    types.StatusIdle,
			Available: avail[ch],
		}
	}

	r.current = &Snapshot{
		version: 1,
		takenAt: r.now(),
		states:  states,
	}
	return r
}

// Snapshot returns the current immutable snapshot.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// mutate applies fn to a deep copy of the current states and publishes
// the result as a new snapshot. fn returning an error leaves the
// registry untouched.
func (r *Registry) mutate(fn func(next *Snapshot) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.current.clone()
	next.version++
	next.takenAt = r.now()
	if err := fn(next); err != nil {
		return err
	}
	r.current = next
	return nil
}

// Activate turns a channel on. Fails with ErrChannelUnavailable if the
// channel was never declared available. Activation resets the channel's
// processing latency and error message. Activating an already-active
// channel is a no-op.
func (r *Registry) Activate(ch types.Channel) error {
	return r.mutate(func(next *Snapshot) error {
		state, ok := next.states[ch]
		if !ok || !state.Available {
			return fmt.Errorf("activate %s: %w", ch, ErrChannelUnavailable)
		}
		if state.Active {
			return nil
		}
		// idle -> requesting -> active; device acquisition itself is an
		// external collaborator, the registry only records the outcome.
		if !state.Status.CanTransition(types.StatusRequesting) {
			return fmt.Errorf("activate %s from %s: %w", ch, state.Status, ErrInvalidTransition)
		}
		state.Status = types.StatusActive
		state.Active = true
		state.ProcessingLatency = 0
		state.ErrorMessage = ""
		next.states[ch] = state
		return nil
	})
}

// Deactivate turns a channel off and returns it to idle.
// Deactivating an inactive channel is a no-op.
func (r *Registry) Deactivate(ch types.Channel) error {
	return r.mutate(func(next *Snapshot) error {
		state, ok := next.states[ch]
		if !ok {
			return fmt.Errorf("deactivate %s: %w", ch, ErrChannelUnavailable)
		}
		if !state.Active {
			return nil
		}
		state.Status = types.StatusIdle
		state.Active = false
		state.PendingInput = nil
		next.states[ch] = state
		if next.primary == ch {
			next.primary = ""
		}
		return nil
	})
}

// SetPrimary marks a channel as the primary input focus.
// The channel must be active.
func (r *Registry) SetPrimary(ch types.Channel) error {
	return r.mutate(func(next *Snapshot) error {
		state, ok := next.states[ch]
		if !ok || !state.Available {
			return fmt.Errorf("set primary %s: %w", ch, ErrChannelUnavailable)
		}
		if !state.Active {
			return fmt.Errorf("set primary %s: %w", ch, ErrChannelInactive)
		}
		next.primary = ch
		return nil
	})
}

// ReportInput records an input arrival on a channel: payload, confidence,
// event timestamp, and the channel's reported processing latency.
func (r *Registry) ReportInput(ch types.Channel, payload any, confidence float64, ts time.Time, latency time.Duration) error {
	if confidence < 0 || confidence > 1 {
		return fmt.Errorf("report input %s: confidence %v: %w", ch, confidence, ErrInvalidConfidence)
	}
	return r.mutate(func(next *Snapshot) error {
		state, ok := next.states[ch]
		if !ok || !state.Available {
			return fmt.Errorf("report input %s: %w", ch, ErrChannelUnavailable)
		}
		if !state.Active {
			return fmt.Errorf("report input %s: %w", ch, ErrChannelInactive)
		}
		state.PendingInput = payload
		state.Confidence = confidence
		state.LastActivity = ts
		state.ProcessingLatency = latency
		next.states[ch] = state
		return nil
	})
}

// SetStatus moves a channel through its state machine, validating the
// transition. Active tracking follows the status: idle and error clear
// the active flag.
func (r *Registry) SetStatus(ch types.Channel, status types.ChannelStatus) error {
	return r.mutate(func(next *Snapshot) error {
		state, ok := next.states[ch]
		if !ok {
			return fmt.Errorf("set status %s: %w", ch, ErrChannelUnavailable)
		}
		if !state.Status.CanTransition(status) {
			return fmt.Errorf("set status %s: %s -> %s: %w", ch, state.Status, status, ErrInvalidTransition)
		}
		state.Status = status
		if status == types.StatusIdle || status == types.StatusError {
			state.Active = false
		}
		next.states[ch] = state
		return nil
	})
}

// MarkError records a channel error and moves it to the error state.
// Legal from any live state; the channel needs Reset before reactivation.
func (r *Registry) MarkError(ch types.Channel, message string) error {
	return r.mutate(func(next *Snapshot) error {
		state, ok := next.states[ch]
		if !ok {
			return fmt.Errorf("mark error %s: %w", ch, ErrChannelUnavailable)
		}
		state.Status = types.StatusError
		state.Active = false
		state.ErrorMessage = message
		next.states[ch] = state
		if next.primary == ch {
			next.primary = ""
		}
		return nil
	})
}

// Reset returns an errored channel to idle so it can be reactivated.
func (r *Registry) Reset(ch types.Channel) error {
	return r.mutate(func(next *Snapshot) error {
		state, ok := next.states[ch]
		if !ok {
			return fmt.Errorf("reset %s: %w", ch, ErrChannelUnavailable)
		}
		state.Status = types.StatusIdle
		state.Active = false
		state.ErrorMessage = ""
		state.PendingInput = nil
		next.states[ch] = state
		return nil
	})
}

// StampState writes a shared state payload and activity timestamp onto
// every listed channel in one atomic mutation. Used by state syncs.
func (r *Registry) StampState(channels []types.Channel, payload any, ts time.Time) error {
	return r.mutate(func(next *Snapshot) error {
		for _, ch := range channels {
			state, ok := next.states[ch]
			if !ok {
				return fmt.Errorf("stamp state %s: %w", ch, ErrChannelUnavailable)
			}
			state.PendingInput = payload
			state.LastActivity = ts
			next.states[ch] = state
		}
		return nil
	})
}

// ClearPending consumes a channel's pending input.
func (r *Registry) ClearPending(ch types.Channel) error {
	return r.mutate(func(next *Snapshot) error {
		state, ok := next.states[ch]
		if !ok {
			return fmt.Errorf("clear pending %s: %w", ch, ErrChannelUnavailable)
		}
		state.PendingInput = nil
		next.states[ch] = state
		return nil
	})
}
