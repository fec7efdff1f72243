package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/tandem/audit"
	"github.com/pithecene-io/tandem/types"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// testClock is a manually advanced clock.
type testClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.at = c.at.Add(d)
	c.mu.Unlock()
}

// fakeInterpreter records combined intents.
type fakeInterpreter struct {
	mu      sync.Mutex
	intents []types.CombinedIntent
}

func (f *fakeInterpreter) Interpret(intent types.CombinedIntent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, intent)
	return nil
}

// fakeOptimizer records optimization requests.
type fakeOptimizer struct {
	mu       sync.Mutex
	channels []types.Channel
}

func (f *fakeOptimizer) OptimizeChannel(ch types.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, ch)
	return nil
}

type harness struct {
	engine      *Engine
	clock       *testClock
	interpreter *fakeInterpreter
	optimizer   *fakeOptimizer
	sink        *audit.MemorySink
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	clock := &testClock{at: t0}
	interp := &fakeInterpreter{}
	opt := &fakeOptimizer{}
	sink := audit.NewMemorySink()

	n := 0
	cfg.Session = types.SessionMeta{SessionID: "sess-test"}
	e := New(cfg,
		WithClock(clock.Now),
		WithIDFunc(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		WithInterpreter(interp),
		WithOptimizer(opt),
		WithAuditSink(sink),
	)
	return &harness{engine: e, clock: clock, interpreter: interp, optimizer: opt, sink: sink}
}

func (h *harness) activate(t *testing.T, ch types.Channel, payload any, confidence float64, latency time.Duration) {
	t.Helper()
	if err := h.engine.ActivateChannel(ch); err != nil {
		t.Fatalf("activate %s: %v", ch, err)
	}
	if err := h.engine.ReportInput(ch, payload, confidence, h.clock.Now(), latency); err != nil {
		t.Fatalf("report input %s: %v", ch, err)
	}
}

func TestTick_IntentConflictCombines(t *testing.T) {
	// Camera and voice both carry high-confidence intents: one tick
	// detects the conflict and combines them into a single intent.
	h := newHarness(t, Config{})
	h.activate(t, types.ChannelCamera, "red sneakers", 0.9, 0)
	h.activate(t, types.ChannelVoice, "show me sneakers", 0.85, 0)

	report := h.engine.Tick()

	if len(report.Detected) != 1 {
		t.Fatalf("detected = %d conflicts, want 1", len(report.Detected))
	}
	c := report.Detected[0]
	if c.Kind != types.ConflictIntent {
		t.Fatalf("kind = %s, want intent", c.Kind)
	}

	for _, stored := range h.engine.Conflicts() {
		if stored.ID == c.ID && !stored.Resolved {
			t.Error("tick must auto-resolve the detected conflict")
		}
	}

	if len(h.interpreter.intents) != 1 {
		t.Fatalf("interpreter received %d intents, want 1", len(h.interpreter.intents))
	}
	intent := h.interpreter.intents[0]
	if got := intent.Confidence; got < 0.874 || got > 0.876 {
		t.Errorf("combined confidence = %v, want 0.875", got)
	}
}

func TestTick_ResourceConflictKeepsHighestConfidence(t *testing.T) {
	h := newHarness(t, Config{})
	h.activate(t, types.ChannelText, "a", 0.5, 0)
	h.activate(t, types.ChannelCamera, "b", 0.7, 0)
	h.activate(t, types.ChannelVoice, "c", 0.6, 0)

	report := h.engine.Tick()
	if len(report.Detected) != 1 || report.Detected[0].Kind != types.ConflictResource {
		t.Fatalf("detected = %+v, want one resource conflict", report.Detected)
	}

	active := h.engine.Snapshot().ActiveChannels()
	if len(active) != 1 || active[0] != types.ChannelCamera {
		t.Errorf("active after resolution = %v, want [camera]", active)
	}
}

func TestTick_PerformanceConflictAndSLA(t *testing.T) {
	// Summed latency 3.2s against the default 3s ceiling: performance
	// conflict, SLA violation, camera attributed as bottleneck.
	h := newHarness(t, Config{})
	h.activate(t, types.ChannelCamera, "b", 0.5, 1700*time.Millisecond)
	h.activate(t, types.ChannelVoice, "c", 0.6, 1500*time.Millisecond)

	report := h.engine.Tick()

	if len(report.Detected) != 1 || report.Detected[0].Kind != types.ConflictPerformance {
		t.Fatalf("detected = %+v, want one performance conflict", report.Detected)
	}
	if report.Performance.SLACompliant {
		t.Error("3.2s total must violate the 3s SLA")
	}
	if report.Performance.Bottleneck != types.ChannelCamera {
		t.Errorf("bottleneck = %s, want camera", report.Performance.Bottleneck)
	}
	if h.engine.ValidateSLA() {
		t.Error("ValidateSLA must reflect the violating observation")
	}

	// The optimizer was pointed at the slowest channel.
	if len(h.optimizer.channels) != 1 || h.optimizer.channels[0] != types.ChannelCamera {
		t.Errorf("optimized = %v, want [camera]", h.optimizer.channels)
	}
}

func TestValidateSLA_TrueBeforeFirstTick(t *testing.T) {
	h := newHarness(t, Config{})
	if !h.engine.ValidateSLA() {
		t.Error("SLA must validate before any observation")
	}
}

func TestReportError_CriticalSystem(t *testing.T) {
	// A critical system error flips health to critical and drops the
	// system channel from availability; resolution reverts to healthy.
	h := newHarness(t, Config{})

	id, err := h.engine.ReportError(types.SystemError{
		Type:        types.ErrSecurityViolation,
		Channel:     types.ChannelSystem,
		Severity:    types.SeverityCritical,
		Message:     "token replay detected",
		Recoverable: false,
	})
	if err != nil {
		t.Fatalf("report error: %v", err)
	}

	health := h.engine.Health()
	if health.Status != types.HealthCritical {
		t.Fatalf("health = %s, want critical", health.Status)
	}
	if health.Degradation.ChannelAvailable(types.ChannelSystem) {
		t.Error("failed system channel must not be available")
	}
	if health.UnresolvedErrors != 1 {
		t.Errorf("unresolved = %d, want 1", health.UnresolvedErrors)
	}

	if err := h.engine.ResolveError(id); err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if got := h.engine.Health().Status; got != types.HealthHealthy {
		t.Errorf("health after resolve = %s, want healthy", got)
	}
}

func TestActivateDegradation_ManualPin(t *testing.T) {
	h := newHarness(t, Config{})

	d, err := h.engine.ActivateDegradation(types.DegradationMinimal)
	if err != nil {
		t.Fatalf("activate degradation: %v", err)
	}
	if d.Level != types.DegradationMinimal {
		t.Fatalf("level = %s, want minimal", d.Level)
	}
	if got := h.engine.Health().Degradation.Level; got != types.DegradationMinimal {
		t.Errorf("health degradation = %s, want minimal", got)
	}

	// The pin is audited through the health transition path.
	var healthRecords int
	for _, rec := range h.sink.Records() {
		if rec.Kind == audit.KindHealth {
			healthRecords++
		}
	}
	if healthRecords != 1 {
		t.Errorf("health audit records = %d, want 1", healthRecords)
	}

	if _, err := h.engine.ActivateDegradation(types.DegradationNone); err != nil {
		t.Fatalf("release degradation: %v", err)
	}
	if got := h.engine.Health().Degradation.Level; got != types.DegradationNone {
		t.Errorf("health degradation = %s, want none after release", got)
	}

	if _, err := h.engine.ActivateDegradation("catastrophic"); err == nil {
		t.Error("unknown level must be rejected")
	}
}

func TestReportError_CriticalChannelFailsRegistryAndAnnounces(t *testing.T) {
	h := newHarness(t, Config{})
	h.activate(t, types.ChannelCamera, nil, 0.5, 0)

	id, err := h.engine.ReportError(types.SystemError{
		Type:        types.ErrCameraHardwareFault,
		Channel:     types.ChannelCamera,
		Severity:    types.SeverityCritical,
		Message:     "sensor unresponsive",
		Recoverable: true,
	})
	if err != nil {
		t.Fatalf("report error: %v", err)
	}

	state, _ := h.engine.Snapshot().State(types.ChannelCamera)
	if state.Status != types.StatusError || state.Active {
		t.Errorf("camera state = %+v, want errored and inactive", state)
	}

	ctx := h.engine.AuditAccessibility()
	assertive := false
	for _, ann := range ctx.Announcements {
		if ann.Politeness == PolitenessAssertive && ann.Channel == types.ChannelCamera {
			assertive = true
		}
	}
	if !assertive {
		t.Error("critical channel failure must announce assertively")
	}

	// Resolving the last camera error resets the channel to idle.
	if err := h.engine.ResolveError(id); err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	state, _ = h.engine.Snapshot().State(types.ChannelCamera)
	if state.Status != types.StatusIdle {
		t.Errorf("camera status = %s, want idle after resolution", state.Status)
	}
	if err := h.engine.ActivateChannel(types.ChannelCamera); err != nil {
		t.Errorf("reactivate after reset: %v", err)
	}
}

func TestRecovery_EndToEnd(t *testing.T) {
	h := newHarness(t, Config{})

	id, err := h.engine.ReportError(types.SystemError{
		Type:        types.ErrConnectionLost,
		Channel:     types.ChannelSystem,
		Severity:    types.SeverityHigh,
		Message:     "backend unreachable",
		Recoverable: true,
	})
	if err != nil {
		t.Fatalf("report error: %v", err)
	}

	plan, err := h.engine.BuildRecoveryPlan(id)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	outcome, err := h.engine.ExecuteRecovery(context.Background(), plan.ID, false)
	if err != nil {
		t.Fatalf("execute recovery: %v", err)
	}
	if !outcome.Succeeded {
		t.Fatalf("outcome = %+v, want success", outcome)
	}
	if got := h.engine.Health().Status; got != types.HealthHealthy {
		t.Errorf("health = %s, want healthy after recovery", got)
	}
}

func TestAnnouncements_ExpireAfterTTL(t *testing.T) {
	h := newHarness(t, Config{})
	h.engine.Announce("search results updated", PolitenessPolite)

	if got := len(h.engine.AuditAccessibility().Announcements); got != 1 {
		t.Fatalf("announcements = %d, want 1", got)
	}

	h.clock.Advance(1100 * time.Millisecond)
	if got := len(h.engine.AuditAccessibility().Announcements); got != 0 {
		t.Errorf("announcements = %d, want swept after TTL", got)
	}
}

func TestAuditAccessibility_FusesActiveInputs(t *testing.T) {
	h := newHarness(t, Config{WCAGLevel: types.WCAGLevelAA})
	h.activate(t, types.ChannelCamera, "red sneakers on a shelf", 0.9, 0)
	h.activate(t, types.ChannelVoice, "show me sneakers", 0.8, 0)

	ctx := h.engine.AuditAccessibility()
	if ctx.Fusion.Primary != types.ChannelCamera {
		t.Errorf("primary = %s, want camera", ctx.Fusion.Primary)
	}
	if !ctx.Fusion.Passed {
		t.Errorf("violations = %+v, want clean pass", ctx.Fusion.Violations)
	}
	if ctx.Level != types.WCAGLevelAA {
		t.Errorf("level = %s, want AA", ctx.Level)
	}
}

func TestSynchronize_RecordsAudit(t *testing.T) {
	h := newHarness(t, Config{})
	h.activate(t, types.ChannelCamera, nil, 0.5, 0)
	h.activate(t, types.ChannelText, nil, 0.5, 0)

	if _, err := h.engine.Synchronize([]types.Channel{types.ChannelCamera, types.ChannelText}, types.SyncState, "ctx"); err != nil {
		t.Fatalf("synchronize: %v", err)
	}
	if _, err := h.engine.Broadcast(types.SyncFeedback, "done", []types.Channel{types.ChannelCamera}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	kinds := map[audit.Kind]int{}
	for _, rec := range h.sink.Records() {
		kinds[rec.Kind]++
	}
	if kinds[audit.KindSync] != 2 {
		t.Errorf("audit sync records = %d, want 2", kinds[audit.KindSync])
	}
	for _, rec := range h.sink.Records() {
		if rec.SessionID != "sess-test" {
			t.Errorf("record session = %q", rec.SessionID)
		}
	}
}

func TestScheduler_StartStop(t *testing.T) {
	h := newHarness(t, Config{TickInterval: time.Millisecond})
	h.activate(t, types.ChannelText, "q", 0.5, 0)

	s := NewScheduler(h.engine)
	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	if h.engine.Metrics().Ticks == 0 {
		t.Error("scheduler produced no observations")
	}
	after := h.engine.Metrics().Ticks
	time.Sleep(10 * time.Millisecond)
	if h.engine.Metrics().Ticks != after {
		t.Error("ticks must stop after Stop")
	}
}
