package cascade

import (
	"fmt"
	"testing"
	"time"

	"github.com/pithecene-io/tandem/types"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(opts ...Option) *Manager {
	n := 0
	base := []Option{
		WithClock(func() time.Time { return t0 }),
		WithIDFunc(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	}
	return NewManager(append(base, opts...)...)
}

func report(t *testing.T, m *Manager, ch types.Channel, typ types.ErrorType, sev types.Severity) string {
	t.Helper()
	id, err := m.Report(types.SystemError{
		Type:        typ,
		Channel:     ch,
		Severity:    sev,
		Message:     string(typ),
		Recoverable: true,
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	return id
}

func TestReportAndResolve_SystemCritical(t *testing.T) {
	// A critical system error flips health to critical and removes the
	// system channel from availability; resolving it reverts to healthy.
	m := newTestManager()

	id := report(t, m, types.ChannelSystem, types.ErrSecurityViolation, types.SeverityCritical)

	if got := m.Health(); got != types.HealthCritical {
		t.Fatalf("health = %s, want critical", got)
	}
	d := m.Degradation()
	if d.ChannelAvailable(types.ChannelSystem) {
		t.Error("failed system channel must not be available")
	}
	for _, ch := range types.Channels() {
		if !d.ChannelAvailable(ch) {
			t.Errorf("input channel %s should remain available", ch)
		}
	}

	if err := m.Resolve(id); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := m.Health(); got != types.HealthHealthy {
		t.Errorf("health after resolve = %s, want healthy", got)
	}
	if got := m.Degradation().Level; got != types.DegradationNone {
		t.Errorf("degradation after resolve = %s, want none", got)
	}
}

func TestHealth_CriticalIffUnresolvedCritical(t *testing.T) {
	m := newTestManager()

	report(t, m, types.ChannelVoice, types.ErrSpeechRecognitionFailed, types.SeverityMedium)
	if got := m.Health(); got != types.HealthDegraded {
		t.Fatalf("health = %s, want degraded", got)
	}

	id := report(t, m, types.ChannelCamera, types.ErrCameraHardwareFault, types.SeverityCritical)
	if got := m.Health(); got != types.HealthCritical {
		t.Fatalf("health = %s, want critical", got)
	}

	if err := m.Resolve(id); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// The medium error is still open: degraded, not critical, not healthy.
	if got := m.Health(); got != types.HealthDegraded {
		t.Errorf("health = %s, want degraded with medium error open", got)
	}
}

func TestChannelHealth(t *testing.T) {
	m := newTestManager()

	if got := m.ChannelHealth(types.ChannelCamera); got != types.ChannelOperational {
		t.Fatalf("camera health = %s, want operational", got)
	}
	report(t, m, types.ChannelCamera, types.ErrCameraCaptureFailed, types.SeverityMedium)
	if got := m.ChannelHealth(types.ChannelCamera); got != types.ChannelDegradedHealth {
		t.Errorf("camera health = %s, want degraded", got)
	}
	report(t, m, types.ChannelCamera, types.ErrCameraHardwareFault, types.SeverityCritical)
	if got := m.ChannelHealth(types.ChannelCamera); got != types.ChannelFailed {
		t.Errorf("camera health = %s, want failed", got)
	}
	if got := m.ChannelHealth(types.ChannelText); got != types.ChannelOperational {
		t.Errorf("text health = %s, want operational", got)
	}
}

func TestDegradation_Levels(t *testing.T) {
	m := newTestManager()

	// Three low-severity errors: partial.
	ids := []string{
		report(t, m, types.ChannelVoice, types.ErrSpeechRecognitionFailed, types.SeverityLow),
		report(t, m, types.ChannelText, types.ErrTextProcessingFailed, types.SeverityLow),
		report(t, m, types.ChannelCamera, types.ErrCameraCaptureFailed, types.SeverityLow),
	}
	if got := m.Degradation().Level; got != types.DegradationPartial {
		t.Errorf("level = %s, want partial at 3 unresolved errors", got)
	}

	for _, id := range ids {
		if err := m.Resolve(id); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}

	// Critical camera failure with voice still up: minimal.
	report(t, m, types.ChannelCamera, types.ErrCameraHardwareFault, types.SeverityCritical)
	d := m.Degradation()
	if d.Level != types.DegradationMinimal {
		t.Errorf("level = %s, want minimal", d.Level)
	}
	if d.ChannelAvailable(types.ChannelCamera) {
		t.Error("failed camera must not be available")
	}

	// Voice fails too: text is the last input channel standing.
	report(t, m, types.ChannelVoice, types.ErrAudioHardwareFault, types.SeverityCritical)
	d = m.Degradation()
	if d.Level != types.DegradationTextOnly {
		t.Errorf("level = %s, want text_only", d.Level)
	}
	if len(d.AlternativeWorkflows) == 0 {
		t.Error("expected alternative workflows for disabled features")
	}
}

func TestForceDegradation(t *testing.T) {
	var levels []types.DegradationLevel
	m := newTestManager(WithHealthListener(func(_ types.HealthStatus, d types.GracefulDegradation) {
		levels = append(levels, d.Level)
	}))

	// Operator pins minimal on a healthy system.
	d, err := m.ForceDegradation(types.DegradationMinimal)
	if err != nil {
		t.Fatalf("force: %v", err)
	}
	if d.Level != types.DegradationMinimal {
		t.Fatalf("level = %s, want minimal", d.Level)
	}
	if len(d.Notifications) == 0 {
		t.Error("forced degradation should carry a user notification")
	}
	if got := m.Degradation().Level; got != types.DegradationMinimal {
		t.Errorf("stored level = %s, want minimal", got)
	}

	// The pin survives error churn that would derive a lower level.
	id := report(t, m, types.ChannelVoice, types.ErrMicInUse, types.SeverityLow)
	if got := m.Degradation().Level; got != types.DegradationMinimal {
		t.Errorf("level after report = %s, want minimal", got)
	}
	if err := m.Resolve(id); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Forcing none releases the pin and the derived policy returns.
	d, err = m.ForceDegradation(types.DegradationNone)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if d.Level != types.DegradationNone {
		t.Errorf("level = %s, want none after release", d.Level)
	}

	// Four notifications: the pin, the two health transitions from the
	// report/resolve churn, and the release.
	if len(levels) != 4 || levels[0] != types.DegradationMinimal || levels[3] != types.DegradationNone {
		t.Errorf("listener levels = %v, want minimal first and none last over 4 firings", levels)
	}

	if _, err := m.ForceDegradation("catastrophic"); err == nil {
		t.Error("unknown level must be rejected")
	}
}

func TestHealthListener(t *testing.T) {
	var transitions []types.HealthStatus
	m := newTestManager(WithHealthListener(func(h types.HealthStatus, _ types.GracefulDegradation) {
		transitions = append(transitions, h)
	}))

	a := report(t, m, types.ChannelVoice, types.ErrMicInUse, types.SeverityMedium)
	report(t, m, types.ChannelVoice, types.ErrSpeechRecognitionFailed, types.SeverityMedium)

	// Second same-level report must not re-fire.
	if len(transitions) != 1 || transitions[0] != types.HealthDegraded {
		t.Fatalf("transitions = %v, want [degraded]", transitions)
	}

	if err := m.Resolve(a); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Still degraded: no transition.
	if len(transitions) != 1 {
		t.Errorf("transitions = %v, resolve without health change must not fire", transitions)
	}
}

func TestRecordRetry_CapsAtMaxRetries(t *testing.T) {
	m := newTestManager()
	id, err := m.Report(types.SystemError{
		Type:        types.ErrConnectionLost,
		Channel:     types.ChannelSystem,
		Severity:    types.SeverityMedium,
		Recoverable: true,
		MaxRetries:  2,
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	for want := 1; want <= 2; want++ {
		got, err := m.RecordRetry(id)
		if err != nil {
			t.Fatalf("retry %d: %v", want, err)
		}
		if got != want {
			t.Errorf("retry count = %d, want %d", got, want)
		}
	}

	// The bound is hard: a further retry errors and never raises the count.
	got, err := m.RecordRetry(id)
	if err == nil {
		t.Error("expected error once retries are exhausted")
	}
	if got != 2 {
		t.Errorf("retry count = %d, must stay at max 2", got)
	}
	e, _ := m.Get(id)
	if e.Recoverable {
		t.Error("exhausted error must be non-recoverable")
	}
}

func TestHistoryCap(t *testing.T) {
	m := newTestManager()
	for i := 0; i < HistoryCap+20; i++ {
		id := report(t, m, types.ChannelText, types.ErrTextInputFailed, types.SeverityLow)
		if err := m.Resolve(id); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}
	if got := len(m.History()); got != HistoryCap {
		t.Errorf("history = %d entries, want capped at %d", got, HistoryCap)
	}
}

func TestReport_Validation(t *testing.T) {
	m := newTestManager()
	if _, err := m.Report(types.SystemError{Channel: types.ChannelCamera}); err == nil {
		t.Error("expected error for empty type")
	}
	if _, err := m.Report(types.SystemError{Type: types.ErrUnknown, Channel: "telepathy"}); err == nil {
		t.Error("expected error for unknown channel")
	}
	if err := m.Resolve("missing"); err == nil {
		t.Error("expected error resolving unknown id")
	}
}
