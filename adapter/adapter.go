// Package adapter defines the notification adapter boundary.
//
// Adapters publish health transition and degradation activation events
// to downstream systems so that session dashboards and support tooling
// learn about degradations without polling the engine. The host owns adapter lifecycle; users
// provide configuration only.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/tandem/log"
	"github.com/pithecene-io/tandem/types"
)

// ContractVersion is the published event contract version.
const ContractVersion = "1"

// Published event types.
const (
	// EventHealthChanged marks an aggregate health transition.
	EventHealthChanged = "health_changed"
	// EventDegradationActivated marks an operator-pinned degradation
	// level change that left aggregate health untouched.
	EventDegradationActivated = "degradation_activated"
)

// HealthChangedEvent is the payload published on every aggregate
// health transition or degradation activation.
type HealthChangedEvent struct {
	ContractVersion   string   `json:"contract_version"`
	EventType         string   `json:"event_type"`
	SessionID         string   `json:"session_id"`
	Health            string   `json:"health"`
	DegradationLevel  string   `json:"degradation_level"`
	AvailableChannels []string `json:"available_channels"`
	DisabledFeatures  []string `json:"disabled_features,omitempty"`
	Notifications     []string `json:"notifications,omitempty"`
	Timestamp         string   `json:"timestamp"` // ISO 8601
}

// Adapter publishes health events to a downstream system.
type Adapter interface {
	// Publish sends a health event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *HealthChangedEvent) error

	// Close releases adapter resources.
	Close() error
}

// NewHealthChangedEvent builds the payload for a health transition.
func NewHealthChangedEvent(sessionID string, health types.HealthStatus, d types.GracefulDegradation, at time.Time) *HealthChangedEvent {
	return newEvent(EventHealthChanged, sessionID, health, d, at)
}

// NewDegradationActivatedEvent builds the payload for an
// operator-initiated degradation pin.
func NewDegradationActivatedEvent(sessionID string, health types.HealthStatus, d types.GracefulDegradation, at time.Time) *HealthChangedEvent {
	return newEvent(EventDegradationActivated, sessionID, health, d, at)
}

func newEvent(eventType, sessionID string, health types.HealthStatus, d types.GracefulDegradation, at time.Time) *HealthChangedEvent {
	channels := make([]string, 0, len(d.AvailableChannels))
	for _, ch := range d.AvailableChannels {
		channels = append(channels, string(ch))
	}
	return &HealthChangedEvent{
		ContractVersion:   ContractVersion,
		EventType:         eventType,
		SessionID:         sessionID,
		Health:            string(health),
		DegradationLevel:  string(d.Level),
		AvailableChannels: channels,
		DisabledFeatures:  append([]string(nil), d.DisabledFeatures...),
		Notifications:     append([]string(nil), d.Notifications...),
		Timestamp:         at.UTC().Format(time.RFC3339),
	}
}

// DefaultPublishTimeout bounds one fanout publish round.
const DefaultPublishTimeout = 15 * time.Second

// Fanout publishes each event to every configured adapter. Publish
// failures are logged and do not block the engine or other adapters.
type Fanout struct {
	adapters []Adapter
	logger   *log.Logger
	timeout  time.Duration
}

// NewFanout creates a fanout over the given adapters.
func NewFanout(adapters []Adapter, logger *log.Logger) *Fanout {
	return &Fanout{adapters: adapters, logger: logger, timeout: DefaultPublishTimeout}
}

// Publish sends the event to all adapters sequentially, best-effort.
func (f *Fanout) Publish(event *HealthChangedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	for _, a := range f.adapters {
		if err := a.Publish(ctx, event); err != nil {
			f.logger.Warn("adapter publish", map[string]any{
				"event":  event.EventType,
				"health": event.Health,
				"error":  err.Error(),
			})
		}
	}
}

// Close closes all adapters, returning the first error.
func (f *Fanout) Close() error {
	var first error
	for _, a := range f.adapters {
		if err := a.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
