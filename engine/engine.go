// Package engine wires the coordination components behind one
// orchestrator facade.
//
// The engine owns the modality registry and routes every command
// through it, runs the detect/resolve/observe cycle on its tick, and
// exposes the query surface the CLI and adapters read from. External
// collaborators (UI receiver, intent interpreter, channel optimizer,
// recovery runner, audit sink) plug in through narrow interfaces.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/tandem/audit"
	"github.com/pithecene-io/tandem/cascade"
	"github.com/pithecene-io/tandem/conflict"
	"github.com/pithecene-io/tandem/fusion"
	"github.com/pithecene-io/tandem/log"
	"github.com/pithecene-io/tandem/monitor"
	"github.com/pithecene-io/tandem/registry"
	"github.com/pithecene-io/tandem/syncer"
	"github.com/pithecene-io/tandem/types"
)

// DefaultMaxTotalLatency is the default SLA ceiling for summed channel
// processing latency.
const DefaultMaxTotalLatency = 3 * time.Second

// DefaultTickInterval is the default coordination cycle period.
const DefaultTickInterval = 100 * time.Millisecond

// Config tunes the engine.
type Config struct {
	// Session identifies the coordination session.
	Session types.SessionMeta
	// Available lists the channels the host can provide. Defaults to all.
	Available []types.Channel
	// MaxTotalLatency is the SLA ceiling (default 3s).
	MaxTotalLatency time.Duration
	// TickInterval is the coordination cycle period (default 100ms).
	TickInterval time.Duration
	// FusionBudget is the accessibility fusion soft deadline.
	FusionBudget time.Duration
	// WCAGLevel is the conformance target (default AA).
	WCAGLevel types.WCAGLevel
	// MaxActiveChannels overrides the resource-conflict threshold.
	MaxActiveChannels int
	// IntentThreshold overrides the intent-conflict threshold.
	IntentThreshold float64
	// AnnouncementTTL overrides how long announcements stay current.
	AnnouncementTTL time.Duration
}

// Engine is the orchestrator facade over all coordination components.
type Engine struct {
	cfg      Config
	logger   *log.Logger
	reg      *registry.Registry
	store    *conflict.Store
	detector *conflict.Detector
	resolver *conflict.Resolver
	coord    *syncer.Coordinator
	perf     *monitor.Monitor
	fuser    *fusion.Engine
	cascade  *cascade.Manager
	executor *cascade.Executor
	announce *announcer
	sink     audit.Sink
	onHealth func(types.HealthStatus, types.GracefulDegradation)
	now      func() time.Time
	newID    func() string
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger      *log.Logger
	telemetry   monitor.Telemetry
	receiver    syncer.Receiver
	interpreter syncer.Interpreter
	optimizer   conflict.Optimizer
	runner      cascade.StepRunner
	sink        audit.Sink
	onHealth    func(types.HealthStatus, types.GracefulDegradation)
	now         func() time.Time
	newID       func() string
}

// WithLogger overrides the engine logger.
func WithLogger(l *log.Logger) Option { return func(o *options) { o.logger = l } }

// WithTelemetry sets the metric sink.
func WithTelemetry(t monitor.Telemetry) Option { return func(o *options) { o.telemetry = t } }

// WithReceiver sets the sync delivery surface.
func WithReceiver(r syncer.Receiver) Option { return func(o *options) { o.receiver = r } }

// WithInterpreter sets the combined-intent consumer.
func WithInterpreter(i syncer.Interpreter) Option { return func(o *options) { o.interpreter = i } }

// WithOptimizer sets the channel optimization hook.
func WithOptimizer(opt conflict.Optimizer) Option { return func(o *options) { o.optimizer = opt } }

// WithRecoveryRunner sets the recovery step runner.
func WithRecoveryRunner(r cascade.StepRunner) Option { return func(o *options) { o.runner = r } }

// WithAuditSink sets the session audit trail sink.
func WithAuditSink(s audit.Sink) Option { return func(o *options) { o.sink = s } }

// WithHealthListener adds an external hook invoked on every aggregate
// health transition, after the engine's own handling.
func WithHealthListener(fn func(types.HealthStatus, types.GracefulDegradation)) Option {
	return func(o *options) { o.onHealth = fn }
}

// WithClock overrides the engine clock. Used in tests.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithIDFunc overrides id generation. Used in tests.
func WithIDFunc(newID func() string) Option { return func(o *options) { o.newID = newID } }

// New assembles an engine from its components.
func New(cfg Config, opts ...Option) *Engine {
	o := &options{
		telemetry: monitor.NopTelemetry{},
		sink:      audit.NopSink{},
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.NewLogger(&cfg.Session)
	}

	if len(cfg.Available) == 0 {
		cfg.Available = types.Channels()
	}
	if cfg.MaxTotalLatency <= 0 {
		cfg.MaxTotalLatency = DefaultMaxTotalLatency
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}

	e := &Engine{
		cfg:      cfg,
		logger:   o.logger,
		sink:     o.sink,
		onHealth: o.onHealth,
		now:      o.now,
		newID:    o.newID,
	}

	e.reg = registry.New(cfg.Available, registry.WithClock(o.now))
	e.perf = monitor.New(cfg.MaxTotalLatency, o.telemetry, monitor.WithClock(o.now))
	e.coord = syncer.New(e.reg, o.receiver, o.interpreter, e.perf,
		syncer.WithClock(o.now), syncer.WithIDFunc(o.newID))

	e.store = conflict.NewStore()
	e.detector = conflict.NewDetector(conflict.DetectorConfig{
		MaxActiveChannels: cfg.MaxActiveChannels,
		IntentThreshold:   cfg.IntentThreshold,
		MaxTotalLatency:   cfg.MaxTotalLatency,
	}, conflict.WithClock(o.now), conflict.WithIDFunc(o.newID))
	e.resolver = conflict.NewResolver(e.store, e.reg, e.coord, o.optimizer, e.reportDemoted,
		conflict.WithResolverClock(o.now))

	e.cascade = cascade.NewManager(
		cascade.WithClock(o.now),
		cascade.WithIDFunc(o.newID),
		cascade.WithHealthListener(e.onHealthChange),
	)
	e.executor = cascade.NewExecutor(e.cascade, o.runner)

	e.fuser = fusion.New(fusion.Config{Budget: cfg.FusionBudget, Level: cfg.WCAGLevel},
		fusion.WithClock(o.now))

	e.announce = newAnnouncer(cfg.AnnouncementTTL, o.now, o.newID)
	return e
}

// Session returns the session metadata the engine was started with.
func (e *Engine) Session() types.SessionMeta { return e.cfg.Session }

// ActivateChannel turns a channel on and announces the change.
func (e *Engine) ActivateChannel(ch types.Channel) error {
	if err := e.reg.Activate(ch); err != nil {
		return err
	}
	e.logger.Info("channel activated", map[string]any{"channel": ch})
	e.announce.announce(fmt.Sprintf("%s input activated", ch), PolitenessPolite, ch)
	return nil
}

// DeactivateChannel turns a channel off and announces the change.
func (e *Engine) DeactivateChannel(ch types.Channel) error {
	if err := e.reg.Deactivate(ch); err != nil {
		return err
	}
	e.logger.Info("channel deactivated", map[string]any{"channel": ch})
	e.announce.announce(fmt.Sprintf("%s input deactivated", ch), PolitenessPolite, ch)
	return nil
}

// SwitchPrimary moves the primary input focus to an active channel.
func (e *Engine) SwitchPrimary(ch types.Channel) error {
	if err := e.reg.SetPrimary(ch); err != nil {
		return err
	}
	e.logger.Info("primary switched", map[string]any{"channel": ch})
	e.announce.announce(fmt.Sprintf("switched to %s input", ch), PolitenessAssertive, ch)
	return nil
}

// ReportInput records an input arrival on a channel.
func (e *Engine) ReportInput(ch types.Channel, payload any, confidence float64, ts time.Time, latency time.Duration) error {
	return e.reg.ReportInput(ch, payload, confidence, ts, latency)
}

// ResetChannel returns an errored channel to idle.
func (e *Engine) ResetChannel(ch types.Channel) error {
	return e.reg.Reset(ch)
}

// ResolveConflict applies a conflict's strategy, or the override.
func (e *Engine) ResolveConflict(id string, override types.ResolutionStrategy) error {
	if err := e.resolver.Resolve(id, override); err != nil {
		return err
	}
	if c, ok := e.store.Get(id); ok {
		e.record(audit.KindConflict, c)
	}
	return nil
}

// Synchronize executes one cross-channel exchange.
func (e *Engine) Synchronize(channels []types.Channel, kind types.SyncKind, payload any) (string, error) {
	id, err := e.coord.Sync(channels, kind, payload)
	if err != nil {
		return "", err
	}
	if rec, ok := e.coord.Get(id); ok {
		e.record(audit.KindSync, rec)
	}
	return id, nil
}

// Broadcast delivers a payload to every active channel except the
// excluded ones.
func (e *Engine) Broadcast(kind types.SyncKind, payload any, exclude []types.Channel) (string, error) {
	id, err := e.coord.Broadcast(kind, payload, exclude)
	if err != nil {
		return "", err
	}
	if rec, ok := e.coord.Get(id); ok {
		e.record(audit.KindSync, rec)
	}
	return id, nil
}

// AbortSync cancels a synchronization exchange.
func (e *Engine) AbortSync(id string) error {
	return e.coord.Abort(id)
}

// ReportError reports a system error into the cascade manager. Critical
// errors on an input channel additionally fail the channel in the
// registry and demand an assertive announcement.
func (e *Engine) ReportError(se types.SystemError) (string, error) {
	id, err := e.cascade.Report(se)
	if err != nil {
		return "", err
	}
	stored, _ := e.cascade.Get(id)

	e.logger.Error("error reported", map[string]any{
		"error_id": id,
		"type":     stored.Type,
		"channel":  stored.Channel,
		"severity": stored.Severity,
	})
	e.record(audit.KindError, stored)

	if stored.Severity == types.SeverityCritical && stored.Channel.Valid() {
		if err := e.reg.MarkError(stored.Channel, stored.Message); err != nil {
			e.logger.Warn("mark channel error", map[string]any{"channel": stored.Channel, "error": err.Error()})
		}
		e.announce.announce(fmt.Sprintf("%s input failed: %s", stored.Channel, stored.Message), PolitenessAssertive, stored.Channel)
	}
	return id, nil
}

// ResolveError resolves a reported error. If the error had failed an
// input channel in the registry and no unresolved errors remain on it,
// the channel is reset to idle for reactivation.
func (e *Engine) ResolveError(id string) error {
	se, ok := e.cascade.Get(id)
	if !ok {
		return fmt.Errorf("resolve error: %q not found", id)
	}
	if err := e.cascade.Resolve(id); err != nil {
		return err
	}
	e.record(audit.KindError, map[string]any{"resolved": id})

	if se.Channel.Valid() && e.cascade.ChannelHealth(se.Channel) == types.ChannelOperational {
		if state, ok := e.reg.Snapshot().State(se.Channel); ok && state.Status == types.StatusError {
			if err := e.reg.Reset(se.Channel); err != nil {
				return err
			}
		}
	}
	return nil
}

// BuildRecoveryPlan assembles a recovery plan for the given errors.
func (e *Engine) BuildRecoveryPlan(errorIDs ...string) (types.RecoveryPlan, error) {
	return e.cascade.BuildPlan(errorIDs...)
}

// ExecuteRecovery runs a stored recovery plan.
func (e *Engine) ExecuteRecovery(ctx context.Context, planID string, confirmed bool) (types.RecoveryOutcome, error) {
	outcome, err := e.executor.Execute(ctx, planID, confirmed)
	if err != nil {
		return outcome, err
	}
	e.logger.Info("recovery executed", map[string]any{
		"plan_id":   planID,
		"succeeded": outcome.Succeeded,
		"aborted":   outcome.Aborted,
	})
	e.record(audit.KindRecovery, outcome)
	return outcome, nil
}

// ActivateDegradation manually pins the reduced-functionality level,
// overriding the policy derived from the error set. DegradationNone
// releases the pin. Level changes flow through the cascade health
// listener, which audits and announces them like any other transition.
func (e *Engine) ActivateDegradation(level types.DegradationLevel) (types.GracefulDegradation, error) {
	d, err := e.cascade.ForceDegradation(level)
	if err != nil {
		return types.GracefulDegradation{}, err
	}
	e.logger.Warn("degradation activated", map[string]any{"level": d.Level})
	return d, nil
}

// Announce publishes a screen-reader announcement.
func (e *Engine) Announce(message string, politeness Politeness) Announcement {
	ann := e.announce.announce(message, politeness, "")
	e.record(audit.KindAnnouncement, ann)
	return ann
}

// TickReport is the outcome of one coordination cycle.
type TickReport struct {
	// Detected lists conflicts raised this tick, already resolved by
	// their default strategies.
	Detected []types.ModalityConflict
	// Performance is the tick's monitor observation.
	Performance monitor.Snapshot
}

// Tick runs one coordination cycle over a single registry snapshot:
// detect conflicts, auto-resolve the new ones, observe performance.
func (e *Engine) Tick() TickReport {
	snap := e.reg.Snapshot()

	detected := e.detector.Detect(snap, e.store.Open())
	for _, c := range detected {
		e.store.Add(c)
		e.logger.Info("conflict detected", map[string]any{
			"conflict_id": c.ID,
			"kind":        c.Kind,
			"channels":    c.Channels,
		})
		if err := e.resolver.Resolve(c.ID, ""); err != nil {
			// Unreachable for freshly stored conflicts; log and move on.
			e.logger.Error("resolve conflict", map[string]any{"conflict_id": c.ID, "error": err.Error()})
		}
		if resolved, ok := e.store.Get(c.ID); ok {
			e.record(audit.KindConflict, resolved)
		}
	}

	report := TickReport{
		Detected:    detected,
		Performance: e.perf.Observe(snap),
	}
	return report
}

// Snapshot returns the current registry snapshot.
func (e *Engine) Snapshot() *registry.Snapshot { return e.reg.Snapshot() }

// Metrics returns the most recent performance observation.
func (e *Engine) Metrics() monitor.Snapshot { return e.perf.Snapshot() }

// ValidateSLA reports whether the last observation met the SLA.
func (e *Engine) ValidateSLA() bool { return e.perf.ValidateSLA() }

// Conflicts returns every conflict of the session in detection order.
func (e *Engine) Conflicts() []types.ModalityConflict { return e.store.All() }

// Syncs returns every sync record of the session in creation order.
func (e *Engine) Syncs() []types.CrossModalSync { return e.coord.All() }

// Errors returns the unresolved errors in report order.
func (e *Engine) Errors() []types.SystemError { return e.cascade.Unresolved() }

// ErrorHistory returns the capped error audit history.
func (e *Engine) ErrorHistory() []types.SystemError { return e.cascade.History() }

// HealthReport aggregates system and per-channel health.
type HealthReport struct {
	Status           types.HealthStatus                    `json:"status"`
	Channels         map[types.Channel]types.ChannelHealth `json:"channels"`
	Degradation      types.GracefulDegradation             `json:"degradation"`
	OpenConflicts    int                                   `json:"open_conflicts"`
	UnresolvedErrors int                                   `json:"unresolved_errors"`
}

// Health returns the aggregate health report.
func (e *Engine) Health() HealthReport {
	channels := make(map[types.Channel]types.ChannelHealth)
	for _, ch := range types.Channels() {
		channels[ch] = e.cascade.ChannelHealth(ch)
	}
	channels[types.ChannelSystem] = e.cascade.ChannelHealth(types.ChannelSystem)

	return HealthReport{
		Status:           e.cascade.Health(),
		Channels:         channels,
		Degradation:      e.cascade.Degradation(),
		OpenConflicts:    len(e.store.Open()),
		UnresolvedErrors: len(e.cascade.Unresolved()),
	}
}

// AccessibilityContext is the queryable accessibility surface.
type AccessibilityContext struct {
	Fusion        fusion.Result   `json:"fusion"`
	Announcements []Announcement  `json:"announcements"`
	Level         types.WCAGLevel `json:"level"`
}

// AuditAccessibility fuses the current pending inputs of all active
// channels and validates the batch against the conformance target.
func (e *Engine) AuditAccessibility() AccessibilityContext {
	snap := e.reg.Snapshot()

	var inputs []fusion.Input
	for _, state := range snap.States() {
		if !state.Active || state.LastActivity.IsZero() {
			continue
		}
		inputs = append(inputs, fusion.Input{
			Channel:           state.Channel,
			Content:           stringPayload(state.PendingInput),
			Confidence:        state.Confidence,
			Timestamp:         state.LastActivity,
			ProcessingLatency: state.ProcessingLatency,
		})
	}

	result := e.fuser.Fuse(inputs)
	e.perf.RecordFusionDuration(result.Duration)
	e.record(audit.KindFusion, result)

	return AccessibilityContext{
		Fusion:        result,
		Announcements: e.announce.active(),
		Level:         result.Level,
	}
}

// reportDemoted routes resolver failures into the cascade manager as
// low-severity coordination errors.
func (e *Engine) reportDemoted(se types.SystemError) {
	if _, err := e.cascade.Report(se); err != nil {
		e.logger.Warn("report demoted error", map[string]any{"error": err.Error()})
	}
}

// onHealthChange reacts to aggregate health transitions: log, audit,
// and announce the new degradation policy.
func (e *Engine) onHealthChange(health types.HealthStatus, d types.GracefulDegradation) {
	e.logger.Warn("health transition", map[string]any{
		"health": health,
		"level":  d.Level,
	})
	e.record(audit.KindHealth, map[string]any{"health": health, "degradation": d})

	for _, msg := range d.Notifications {
		e.announce.announce(msg, PolitenessAssertive, "")
	}

	if e.onHealth != nil {
		e.onHealth(health, d)
	}
}

// record appends to the audit trail, logging failures without
// propagating them.
func (e *Engine) record(kind audit.Kind, payload any) {
	rec := audit.Record{
		Kind:      kind,
		SessionID: e.cfg.Session.SessionID,
		At:        e.now(),
		Payload:   payload,
	}
	if err := e.sink.Append(rec); err != nil {
		e.logger.Warn("audit append", map[string]any{"kind": kind, "error": err.Error()})
	}
}

// stringPayload renders a pending input for fusion.
func stringPayload(v any) string {
	switch p := v.(type) {
	case nil:
		return ""
	case string:
		return p
	case fmt.Stringer:
		return p.String()
	default:
		return fmt.Sprintf("%v", p)
	}
}
