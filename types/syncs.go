package types

import "time"

// SyncKind classifies a cross-modal synchronization exchange.
type SyncKind string

const (
	// SyncState stamps every targeted channel with a shared state payload.
	SyncState SyncKind = "state"
	// SyncIntentCombine merges the targeted channels' confidence and
	// payloads into one combined intent.
	SyncIntentCombine SyncKind = "intent_combine"
	// SyncContext broadcasts shared context to every other active channel.
	SyncContext SyncKind = "context"
	// SyncFeedback broadcasts feedback to every other active channel.
	SyncFeedback SyncKind = "feedback"
)

// Valid returns true if k is a known sync kind.
func (k SyncKind) Valid() bool {
	switch k {
	case SyncState, SyncIntentCombine, SyncContext, SyncFeedback:
		return true
	}
	return false
}

// SyncDelivery records the outcome of delivering a sync to one channel.
type SyncDelivery struct {
	// Channel is the receiving channel.
	Channel Channel `json:"channel"`
	// Acknowledged is true once the channel received the broadcast.
	Acknowledged bool `json:"acknowledged"`
	// Error describes a per-channel delivery failure, empty on success.
	Error string `json:"error,omitempty"`
}

// CrossModalSync is one synchronization exchange between channels.
// Partial delivery failures are recorded per channel without aborting
// delivery to the remaining channels.
type CrossModalSync struct {
	// ID is the unique sync identifier.
	ID string `json:"id"`
	// Channels are the participating channels, in registration order.
	Channels []Channel `json:"channels"`
	// Kind classifies the exchange.
	Kind SyncKind `json:"kind"`
	// Payload is the opaque payload being exchanged.
	Payload any `json:"payload,omitempty"`
	// StartedAt is when the coordinator began the exchange.
	StartedAt time.Time `json:"started_at"`
	// Duration is the total exchange duration once complete.
	Duration time.Duration `json:"duration"`
	// Complete is true once every targeted channel has acknowledged.
	Complete bool `json:"complete"`
	// Deliveries records per-channel delivery outcomes.
	Deliveries []SyncDelivery `json:"deliveries"`
	// Errors collects per-channel delivery failures and abort reasons.
	Errors []string `json:"errors,omitempty"`
}

// CombinedIntent is the merged result of an intent-combine sync, handed
// to an external interpreter for semantic interpretation.
type CombinedIntent struct {
	// Channels are the contributing channels.
	Channels []Channel `json:"channels"`
	// Confidence is the merged confidence of the combined intent.
	Confidence float64 `json:"confidence"`
	// Inputs maps each contributing channel to its pending input payload.
	Inputs map[Channel]any `json:"inputs"`
	// CombinedAt is when the merge happened.
	CombinedAt time.Time `json:"combined_at"`
}
