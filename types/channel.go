// Package types defines core domain types for the Tandem coordination engine.
// Leaf package: no internal dependencies.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"time"
)

// Channel identifies one modality input source.
type Channel string

const (
	// ChannelCamera is the visual input channel.
	ChannelCamera Channel = "camera"
	// ChannelVoice is the audio input channel.
	ChannelVoice Channel = "voice"
	// ChannelText is the keyboard/text input channel.
	ChannelText Channel = "text"
)

// Channels returns all supported channels in static priority order.
// The order is meaningful: it is the tie-break order for fusion
// primary-channel selection (text > camera > voice) and the delivery
// order for cross-channel broadcasts.
func Channels() []Channel {
	return []Channel{ChannelText, ChannelCamera, ChannelVoice}
}

// Valid returns true if c is a supported channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelCamera, ChannelVoice, ChannelText:
		return true
	}
	return false
}

// ChannelStatus is the lifecycle state of a channel.
type ChannelStatus string

const (
	// StatusIdle means the channel is not in use.
	StatusIdle ChannelStatus = "idle"
	// StatusRequesting means device/permission acquisition is in flight.
	StatusRequesting ChannelStatus = "requesting"
	// StatusActive means the channel is live and accepting input.
	StatusActive ChannelStatus = "active"
	// StatusCapturing means the channel is actively capturing input.
	StatusCapturing ChannelStatus = "capturing"
	// StatusProcessing means captured input is being processed.
	StatusProcessing ChannelStatus = "processing"
	// StatusDegraded means the channel is live but impaired.
	StatusDegraded ChannelStatus = "degraded"
	// StatusError means the channel hit an error and needs a reset.
	StatusError ChannelStatus = "error"
)

// statusTransitions is the per-channel state machine:
// idle -> requesting -> active <-> {capturing, processing, degraded} -> error -> idle.
// No state is terminal for the session; channels can always be reactivated.
var statusTransitions = map[ChannelStatus][]ChannelStatus{
	StatusIdle:       {StatusRequesting},
	StatusRequesting: {StatusActive, StatusError, StatusIdle},
	StatusActive:     {StatusCapturing, StatusProcessing, StatusDegraded, StatusError, StatusIdle},
	StatusCapturing:  {StatusActive, StatusProcessing, StatusError},
	StatusProcessing: {StatusActive, StatusDegraded, StatusError},
	StatusDegraded:   {StatusActive, StatusError, StatusIdle},
	StatusError:      {StatusIdle},
}

// CanTransition reports whether moving from s to next is a legal
// state-machine transition.
func (s ChannelStatus) CanTransition(next ChannelStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ModalityState is the live state of one channel.
// Instances are value types; the registry never hands out shared pointers.
type ModalityState struct {
	// Channel is the channel this state belongs to.
	Channel Channel `json:"channel"`
	// Status is the lifecycle state.
	Status ChannelStatus `json:"status"`
	// Active is true while the channel accepts input.
	Active bool `json:"active"`
	// Available is true if the channel was declared available at engine start.
	Available bool `json:"available"`
	// Confidence is the most recent input confidence, always in [0, 1].
	Confidence float64 `json:"confidence"`
	// LastActivity is the timestamp of the most recent input.
	LastActivity time.Time `json:"last_activity"`
	// PendingInput is the most recent unconsumed input payload.
	PendingInput any `json:"pending_input,omitempty"`
	// ProcessingLatency is the channel's most recent processing latency.
	ProcessingLatency time.Duration `json:"processing_latency"`
	// ErrorMessage is set when the channel last reported an error.
	ErrorMessage string `json:"error_message,omitempty"`
}

// Validate checks modality state invariants.
func (m *ModalityState) Validate() error {
	if !m.Channel.Valid() {
		return fmt.Errorf("unknown channel %q", m.Channel)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %v", m.Confidence)
	}
	if m.ProcessingLatency < 0 {
		return fmt.Errorf("processing latency must be >= 0, got %v", m.ProcessingLatency)
	}
	return nil
}

// SessionMeta is session identity for one coordination session.
type SessionMeta struct {
	// SessionID is the canonical session identifier. Must be non-empty.
	SessionID string
	// UserAgent describes the surrounding UI, if known.
	UserAgent string
	// StartedAt is the session start time.
	StartedAt time.Time
}

// Validate checks session identity.
func (s *SessionMeta) Validate() error {
	if s.SessionID == "" {
		return errors.New("session_id must be non-empty")
	}
	return nil
}
