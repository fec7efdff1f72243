package conflict

import (
	"fmt"
	"time"

	"github.com/pithecene-io/tandem/registry"
	"github.com/pithecene-io/tandem/types"
)

// Combiner triggers an intent-combine sync over the given channels.
// Implemented by the synchronization coordinator.
type Combiner interface {
	CombineIntents(channels []types.Channel) (syncID string, err error)
}

// Optimizer is the channel-specific optimization hook, an external
// collaborator invoked when a performance conflict names a bottleneck.
type Optimizer interface {
	OptimizeChannel(ch types.Channel) error
}

// NopOptimizer ignores optimization requests.
type NopOptimizer struct{}

// OptimizeChannel implements Optimizer.
func (NopOptimizer) OptimizeChannel(types.Channel) error { return nil }

// ErrorReporter receives demoted resolution failures. The engine never
// lets a resolver failure crash a tick; failures become low-severity
// coordination errors instead.
type ErrorReporter func(types.SystemError)

// Resolver applies resolution strategies to stored conflicts.
type Resolver struct {
	store     *Store
	reg       *registry.Registry
	combiner  Combiner
	optimizer Optimizer
	report    ErrorReporter
	now       func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverClock overrides the resolver clock. Used in tests.
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a resolver. A nil optimizer falls back to
// NopOptimizer; a nil reporter discards demoted failures.
func NewResolver(store *Store, reg *registry.Registry, combiner Combiner, optimizer Optimizer, report ErrorReporter, opts ...ResolverOption) *Resolver {
	if optimizer == nil {
		optimizer = NopOptimizer{}
	}
	if report == nil {
		report = func(types.SystemError) {}
	}
	r := &Resolver{
		store:     store,
		reg:       reg,
		combiner:  combiner,
		optimizer: optimizer,
		report:    report,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve applies the conflict's strategy, or the override when given.
// Resolving an already-resolved conflict is a no-op. Strategy execution
// failures are demoted to low-severity coordination errors and reported,
// never returned: the conflict is still marked resolved so the detector
// can re-raise it on the next tick if the condition persists.
//
// Errors are returned only for caller mistakes: unknown conflict id or
// unknown strategy override.
func (r *Resolver) Resolve(id string, override types.ResolutionStrategy) error {
	c, ok := r.store.Get(id)
	if !ok {
		return fmt.Errorf("resolve: conflict %q not found", id)
	}
	if c.Resolved {
		return nil
	}

	strategy := c.Strategy
	if override != "" {
		if !override.Valid() {
			return fmt.Errorf("resolve %s: unknown strategy %q", id, override)
		}
		strategy = override
	}

	var execErr error
	switch strategy {
	case types.StrategyPrioritizeConfidence:
		execErr = r.prioritizeConfidence(&c)
	case types.StrategyCombineInputs:
		_, execErr = r.combiner.CombineIntents(c.Channels)
	case types.StrategyOptimizeSlowest:
		execErr = r.optimizeSlowest(&c)
	}

	if _, err := r.store.MarkResolved(id, r.now()); err != nil {
		return err
	}

	if execErr != nil {
		r.report(types.SystemError{
			Type:        types.ErrCoordinationFailed,
			Channel:     types.ChannelSystem,
			Severity:    types.SeverityLow,
			Message:     fmt.Sprintf("conflict %s resolution via %s failed: %v", id, strategy, execErr),
			Recoverable: true,
			ReportedAt:  r.now(),
			MaxRetries:  1,
			UserImpact:  types.ImpactNone,
			Context:     map[string]string{"conflict_id": id, "strategy": string(strategy)},
		})
	}
	return nil
}

// prioritizeConfidence keeps the highest-confidence channel of the
// conflict active and deactivates the rest.
func (r *Resolver) prioritizeConfidence(c *types.ModalityConflict) error {
	snap := r.reg.Snapshot()

	var winner types.Channel
	best := -1.0
	for _, ch := range c.Channels {
		state, ok := snap.State(ch)
		if !ok || !state.Active {
			continue
		}
		if state.Confidence > best {
			winner = ch
			best = state.Confidence
		}
	}
	if winner == "" {
		return fmt.Errorf("no active channel left among %v", c.Channels)
	}

	for _, ch := range c.Channels {
		if ch == winner {
			continue
		}
		if err := r.reg.Deactivate(ch); err != nil {
			return fmt.Errorf("deactivate %s: %w", ch, err)
		}
	}
	return nil
}

// optimizeSlowest identifies the highest-latency channel of the conflict
// and triggers its optimization hook.
func (r *Resolver) optimizeSlowest(c *types.ModalityConflict) error {
	snap := r.reg.Snapshot()

	var slowest types.Channel
	var max time.Duration
	found := false
	for _, ch := range c.Channels {
		state, ok := snap.State(ch)
		if !ok || !state.Active {
			continue
		}
		if !found || state.ProcessingLatency > max {
			slowest = ch
			max = state.ProcessingLatency
			found = true
		}
	}
	if !found {
		return fmt.Errorf("no active channel left among %v", c.Channels)
	}

	if err := r.optimizer.OptimizeChannel(slowest); err != nil {
		return fmt.Errorf("optimize %s: %w", slowest, err)
	}
	return nil
}
