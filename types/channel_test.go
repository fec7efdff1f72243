package types

import (
	"testing"
	"time"
)

func TestChannelStatus_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from ChannelStatus
		to   ChannelStatus
		want bool
	}{
		{"idle to requesting", StatusIdle, StatusRequesting, true},
		{"idle to active skips requesting", StatusIdle, StatusActive, false},
		{"requesting to active", StatusRequesting, StatusActive, true},
		{"requesting to error", StatusRequesting, StatusError, true},
		{"active to capturing", StatusActive, StatusCapturing, true},
		{"active to idle on deactivation", StatusActive, StatusIdle, true},
		{"capturing to processing", StatusCapturing, StatusProcessing, true},
		{"processing back to active", StatusProcessing, StatusActive, true},
		{"degraded back to active", StatusDegraded, StatusActive, true},
		{"error to idle on reset", StatusError, StatusIdle, true},
		{"error directly to active", StatusError, StatusActive, false},
		{"capturing to idle", StatusCapturing, StatusIdle, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestChannelStatus_NoTerminalState(t *testing.T) {
	// Every status must have at least one outgoing transition; channels
	// can always be reactivated within a session.
	for status := range statusTransitions {
		if len(statusTransitions[status]) == 0 {
			t.Errorf("status %s has no outgoing transitions", status)
		}
	}
}

func TestChannels_PriorityOrder(t *testing.T) {
	got := Channels()
	want := []Channel{ChannelText, ChannelCamera, ChannelVoice}
	if len(got) != len(want) {
		t.Fatalf("Channels() returned %d channels, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Channels()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestModalityState_Validate(t *testing.T) {
	tests := []struct {
		name    string
		state   ModalityState
		wantErr bool
	}{
		{
			name:  "valid state",
			state: ModalityState{Channel: ChannelCamera, Confidence: 0.9},
		},
		{
			name:  "confidence at bounds",
			state: ModalityState{Channel: ChannelVoice, Confidence: 1.0},
		},
		{
			name:    "confidence above one",
			state:   ModalityState{Channel: ChannelText, Confidence: 1.2},
			wantErr: true,
		},
		{
			name:    "negative confidence",
			state:   ModalityState{Channel: ChannelText, Confidence: -0.1},
			wantErr: true,
		},
		{
			name:    "unknown channel",
			state:   ModalityState{Channel: "gesture", Confidence: 0.5},
			wantErr: true,
		},
		{
			name:    "negative latency",
			state:   ModalityState{Channel: ChannelCamera, ProcessingLatency: -time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionMeta_Validate(t *testing.T) {
	meta := &SessionMeta{}
	if err := meta.Validate(); err == nil {
		t.Error("expected error for empty session_id")
	}

	meta.SessionID = "sess-001"
	if err := meta.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
