package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/tandem/registry"
	"github.com/pithecene-io/tandem/types"
)

// recordingTelemetry captures emitted metrics for assertions.
type recordingTelemetry struct {
	mu      sync.Mutex
	metrics []emitted
}

type emitted struct {
	name  string
	value float64
	tags  map[string]string
}

func (r *recordingTelemetry) Emit(name string, value float64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, emitted{name, value, tags})
}

func (r *recordingTelemetry) byName(name string) []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emitted
	for _, m := range r.metrics {
		if m.name == name {
			out = append(out, m)
		}
	}
	return out
}

func activeRegistry(t *testing.T, latencies map[types.Channel]time.Duration) *registry.Registry {
	t.Helper()
	r := registry.New([]types.Channel{types.ChannelCamera, types.ChannelVoice, types.ChannelText})
	now := time.Now()
	for ch, lat := range latencies {
		if err := r.Activate(ch); err != nil {
			t.Fatalf("activate %s: %v", ch, err)
		}
		if err := r.ReportInput(ch, nil, 0.5, now, lat); err != nil {
			t.Fatalf("report input %s: %v", ch, err)
		}
	}
	return r
}

func TestObserve_SLACompliant(t *testing.T) {
	r := activeRegistry(t, map[types.Channel]time.Duration{
		types.ChannelCamera: 800 * time.Millisecond,
		types.ChannelText:   200 * time.Millisecond,
	})

	tel := &recordingTelemetry{}
	m := New(3*time.Second, tel)

	snap := m.Observe(r.Snapshot())
	if snap.TotalLatency != time.Second {
		t.Errorf("total latency = %v, want 1s", snap.TotalLatency)
	}
	if !snap.SLACompliant {
		t.Error("expected SLA compliance")
	}
	if !m.ValidateSLA() {
		t.Error("ValidateSLA() = false, want true")
	}
	if snap.Bottleneck != types.ChannelCamera {
		t.Errorf("bottleneck = %s, want camera", snap.Bottleneck)
	}

	if got := tel.byName(MetricTotalLatency); len(got) != 1 || got[0].value != 1000 {
		t.Errorf("total_latency emissions = %v, want one emission of 1000", got)
	}
	if got := tel.byName(MetricSLACompliance); len(got) != 1 || got[0].value != 1 {
		t.Errorf("sla_compliance emissions = %v, want one emission of 1", got)
	}
}

func TestObserve_SLAViolation_IdentifiesBottleneck(t *testing.T) {
	// Scenario: 3200ms total against a 3000ms threshold.
	r := activeRegistry(t, map[types.Channel]time.Duration{
		types.ChannelCamera: 1500 * time.Millisecond,
		types.ChannelVoice:  1200 * time.Millisecond,
		types.ChannelText:   500 * time.Millisecond,
	})

	tel := &recordingTelemetry{}
	m := New(3*time.Second, tel)

	snap := m.Observe(r.Snapshot())
	if snap.TotalLatency != 3200*time.Millisecond {
		t.Errorf("total latency = %v, want 3.2s", snap.TotalLatency)
	}
	if snap.SLACompliant {
		t.Error("expected SLA violation")
	}
	if snap.Bottleneck != types.ChannelCamera {
		t.Errorf("bottleneck = %s, want camera (highest latency)", snap.Bottleneck)
	}
	if snap.Violations != 1 {
		t.Errorf("violations = %d, want 1", snap.Violations)
	}
	if m.ValidateSLA() {
		t.Error("ValidateSLA() = true, want false")
	}

	if got := tel.byName(MetricSLACompliance); len(got) != 1 || got[0].value != 0 {
		t.Errorf("sla_compliance emissions = %v, want one emission of 0", got)
	}
}

func TestValidateSLA_BeforeFirstObservation(t *testing.T) {
	m := New(time.Second, nil)
	if !m.ValidateSLA() {
		t.Error("ValidateSLA() before any observation should be true")
	}
}

func TestObserve_NoActiveChannels(t *testing.T) {
	r := registry.New([]types.Channel{types.ChannelText})
	m := New(time.Second, nil)

	snap := m.Observe(r.Snapshot())
	if snap.TotalLatency != 0 {
		t.Errorf("total latency = %v, want 0", snap.TotalLatency)
	}
	if snap.Bottleneck != "" {
		t.Errorf("bottleneck = %s, want empty", snap.Bottleneck)
	}
	if !snap.SLACompliant {
		t.Error("empty registry should be SLA compliant")
	}
}

func TestRecordSyncDuration_Tagged(t *testing.T) {
	tel := &recordingTelemetry{}
	m := New(time.Second, tel)

	m.RecordSyncDuration(types.SyncIntentCombine, 40*time.Millisecond)

	got := tel.byName(MetricSyncDuration)
	if len(got) != 1 {
		t.Fatalf("sync_duration emissions = %d, want 1", len(got))
	}
	if got[0].tags["kind"] != string(types.SyncIntentCombine) {
		t.Errorf("kind tag = %q, want intent_combine", got[0].tags["kind"])
	}
}

func TestMonitor_NilReceiverSafe(t *testing.T) {
	var m *Monitor
	if !m.ValidateSLA() {
		t.Error("nil monitor ValidateSLA should be true")
	}
	m.RecordSyncDuration(types.SyncState, time.Millisecond)
	m.RecordFusionDuration(time.Millisecond)
	_ = m.Snapshot()
}
