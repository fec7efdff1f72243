// Package cascade implements the error cascade and recovery manager.
//
// The manager records reported errors per channel, computes aggregate
// system health, builds and executes recovery plans, and derives the
// graceful-degradation policy whenever health changes. It reacts to
// explicit error reports independent of the engine tick.
package cascade

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/tandem/types"
)

// HistoryCap bounds the retained error history for audit.
const HistoryCap = 100

// DefaultMaxRetries bounds automatic recovery attempts when the
// reporter did not set one.
const DefaultMaxRetries = 3

// HealthListener is notified whenever aggregate health transitions.
// Called outside the manager lock.
type HealthListener func(health types.HealthStatus, degradation types.GracefulDegradation)

// Manager owns error state, health, and degradation policy.
// Thread-safe. Callers receive copies, never live references.
type Manager struct {
	mu       sync.Mutex
	errors   map[string]*types.SystemError
	order    []string
	history  []types.SystemError
	plans    map[string]*types.RecoveryPlan
	health   types.HealthStatus
	degraded types.GracefulDegradation
	forced   types.DegradationLevel

	listener HealthListener
	now      func() time.Time
	newID    func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the manager clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDFunc overrides id generation. Used in tests.
func WithIDFunc(newID func() string) Option {
	return func(m *Manager) {
		m.newID = newID
	}
}

// WithHealthListener registers the health transition listener.
func WithHealthListener(l HealthListener) Option {
	return func(m *Manager) {
		m.listener = l
	}
}

// NewManager creates an empty manager in healthy state.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		errors: make(map[string]*types.SystemError),
		plans:  make(map[string]*types.RecoveryPlan),
		health: types.HealthHealthy,
		degraded: types.GracefulDegradation{
			Level:             types.DegradationNone,
			AvailableChannels: allChannels(),
		},
		listener: func(types.HealthStatus, types.GracefulDegradation) {},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// allChannels is the channel universe tracked by the cascade manager:
// the input channels plus the system pseudo-channel.
func allChannels() []types.Channel {
	return append(types.Channels(), types.ChannelSystem)
}

// Report stores a reported error and returns its id.
// Channel status degrades (or fails on critical severity), aggregate
// health is recomputed, and the degradation policy is refreshed on any
// health transition.
func (m *Manager) Report(e types.SystemError) (string, error) {
	if e.ID == "" {
		e.ID = m.newID()
	}
	if e.ReportedAt.IsZero() {
		e.ReportedAt = m.now()
	}
	if e.MaxRetries == 0 {
		e.MaxRetries = DefaultMaxRetries
	}
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("report: %w", err)
	}

	m.mu.Lock()
	stored := e
	m.errors[e.ID] = &stored
	m.order = append(m.order, e.ID)

	m.history = append(m.history, e)
	if len(m.history) > HistoryCap {
		m.history = m.history[len(m.history)-HistoryCap:]
	}

	changed, health, degraded := m.recomputeLocked()
	m.mu.Unlock()

	if changed {
		m.listener(health, degraded)
	}
	return e.ID, nil
}

// Resolve removes an error. If no sibling errors remain for its
// channel, the channel reverts to operational; aggregate health and
// degradation are recomputed.
func (m *Manager) Resolve(id string) error {
	m.mu.Lock()
	if _, ok := m.errors[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("resolve: error %q not found", id)
	}
	delete(m.errors, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	changed, health, degraded := m.recomputeLocked()
	m.mu.Unlock()

	if changed {
		m.listener(health, degraded)
	}
	return nil
}

// RecordRetry increments an error's retry count. Once the count reaches
// MaxRetries the error escalates to non-recoverable and is surfaced for
// manual intervention; the count never exceeds the bound.
func (m *Manager) RecordRetry(id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.errors[id]
	if !ok {
		return 0, fmt.Errorf("record retry: error %q not found", id)
	}
	if e.RetryCount >= e.MaxRetries {
		e.Recoverable = false
		return e.RetryCount, fmt.Errorf("record retry: error %q exhausted %d retries", id, e.MaxRetries)
	}
	e.RetryCount++
	if e.RetryCount >= e.MaxRetries {
		e.Recoverable = false
	}
	return e.RetryCount, nil
}

// Health returns the current aggregate health.
func (m *Manager) Health() types.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health
}

// ChannelHealth derives one channel's operational status from its
// unresolved errors: failed on any critical, degraded on any error,
// operational otherwise.
func (m *Manager) ChannelHealth(ch types.Channel) types.ChannelHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channelHealthLocked(ch)
}

func (m *Manager) channelHealthLocked(ch types.Channel) types.ChannelHealth {
	health := types.ChannelOperational
	for _, e := range m.errors {
		if e.Channel != ch {
			continue
		}
		if e.Severity == types.SeverityCritical {
			return types.ChannelFailed
		}
		health = types.ChannelDegradedHealth
	}
	return health
}

// Unresolved returns copies of all unresolved errors in report order.
func (m *Manager) Unresolved() []types.SystemError {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.SystemError, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.errors[id])
	}
	return out
}

// Get returns a copy of one unresolved error.
func (m *Manager) Get(id string) (types.SystemError, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.errors[id]
	if !ok {
		return types.SystemError{}, false
	}
	return *e, true
}

// History returns the capped audit history, most recent last.
func (m *Manager) History() []types.SystemError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.SystemError(nil), m.history...)
}

// ForceDegradation pins the degradation level regardless of the error
// set, for operator-initiated degradation. Forcing DegradationNone
// releases the pin and the derived policy takes over again.
// Returns the refreshed policy.
func (m *Manager) ForceDegradation(level types.DegradationLevel) (types.GracefulDegradation, error) {
	if !level.Valid() {
		return types.GracefulDegradation{}, fmt.Errorf("force degradation: unknown level %q", level)
	}

	m.mu.Lock()
	if level == types.DegradationNone {
		m.forced = ""
	} else {
		m.forced = level
	}
	before := m.degraded.Level
	m.degraded = m.deriveDegradationLocked()
	degraded := m.degraded
	health := m.health
	m.mu.Unlock()

	if degraded.Level != before {
		m.listener(health, degraded)
	}
	return degraded, nil
}

// Degradation returns the current graceful-degradation policy.
func (m *Manager) Degradation() types.GracefulDegradation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// recomputeLocked refreshes aggregate health and degradation.
// Returns whether health transitioned. Caller must hold m.mu.
func (m *Manager) recomputeLocked() (bool, types.HealthStatus, types.GracefulDegradation) {
	health := types.HealthHealthy
	for _, e := range m.errors {
		if e.Severity == types.SeverityCritical {
			health = types.HealthCritical
			break
		}
		health = types.HealthDegraded
	}

	changed := health != m.health
	m.health = health
	m.degraded = m.deriveDegradationLocked()
	return changed, health, m.degraded
}
