package adapter

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/pithecene-io/tandem/log"
	"github.com/pithecene-io/tandem/types"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testDegradation() types.GracefulDegradation {
	return types.GracefulDegradation{
		Level:             types.DegradationMinimal,
		AvailableChannels: []types.Channel{types.ChannelVoice, types.ChannelText},
		DisabledFeatures:  []string{"visual_search"},
		Notifications:     []string{"Camera is unavailable. Describe the product in the text box instead."},
	}
}

func TestNewHealthChangedEvent(t *testing.T) {
	ev := NewHealthChangedEvent("sess-001", types.HealthCritical, testDegradation(), t0)

	if ev.EventType != EventHealthChanged {
		t.Errorf("event type = %q, want %q", ev.EventType, EventHealthChanged)
	}
	if ev.ContractVersion != ContractVersion {
		t.Errorf("contract version = %q", ev.ContractVersion)
	}
	if ev.Health != "critical" || ev.DegradationLevel != "minimal" {
		t.Errorf("health/level = %q/%q", ev.Health, ev.DegradationLevel)
	}
	if len(ev.AvailableChannels) != 2 || ev.AvailableChannels[0] != "voice" {
		t.Errorf("available channels = %v", ev.AvailableChannels)
	}
	if ev.Timestamp != "2026-08-01T12:00:00Z" {
		t.Errorf("timestamp = %q", ev.Timestamp)
	}
}

func TestNewDegradationActivatedEvent(t *testing.T) {
	ev := NewDegradationActivatedEvent("sess-001", types.HealthHealthy, testDegradation(), t0)

	if ev.EventType != EventDegradationActivated {
		t.Errorf("event type = %q, want %q", ev.EventType, EventDegradationActivated)
	}
	// A pin carries the unchanged health alongside the new level.
	if ev.Health != "healthy" || ev.DegradationLevel != "minimal" {
		t.Errorf("health/level = %q/%q", ev.Health, ev.DegradationLevel)
	}
	if len(ev.Notifications) != 1 {
		t.Errorf("notifications = %v", ev.Notifications)
	}
}

// fakeAdapter records published events and optionally fails.
type fakeAdapter struct {
	events []*HealthChangedEvent
	err    error
	closed bool
}

func (f *fakeAdapter) Publish(_ context.Context, ev *HealthChangedEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakeAdapter) Close() error {
	f.closed = true
	return nil
}

func TestFanout_PublishBestEffort(t *testing.T) {
	failing := &fakeAdapter{err: errors.New("downstream unavailable")}
	working := &fakeAdapter{}
	logger := log.NewLogger(&types.SessionMeta{SessionID: "sess-001"}).WithOutput(io.Discard)

	f := NewFanout([]Adapter{failing, working}, logger)
	f.Publish(NewHealthChangedEvent("sess-001", types.HealthDegraded, testDegradation(), t0))

	// The failing adapter must not block delivery to the working one.
	if len(working.events) != 1 {
		t.Fatalf("working adapter events = %d, want 1", len(working.events))
	}
	if working.events[0].EventType != EventHealthChanged {
		t.Errorf("event type = %q", working.events[0].EventType)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !failing.closed || !working.closed {
		t.Error("close must reach every adapter")
	}
}
