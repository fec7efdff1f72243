package conflict

import (
	"errors"
	"testing"
	"time"

	"github.com/pithecene-io/tandem/types"
)

// fakeCombiner records intent-combine requests.
type fakeCombiner struct {
	calls [][]types.Channel
	err   error
}

func (f *fakeCombiner) CombineIntents(channels []types.Channel) (string, error) {
	f.calls = append(f.calls, channels)
	return "sync-001", f.err
}

// fakeOptimizer records optimization hook invocations.
type fakeOptimizer struct {
	calls []types.Channel
	err   error
}

func (f *fakeOptimizer) OptimizeChannel(ch types.Channel) error {
	f.calls = append(f.calls, ch)
	return f.err
}

func storeWith(c types.ModalityConflict) *Store {
	s := NewStore()
	s.Add(c)
	return s
}

func TestResolve_PrioritizeHighestConfidence(t *testing.T) {
	// Scenario: three active channels, resolver keeps the most confident.
	r := newTestRegistry(t)
	activate(t, r, types.ChannelCamera, 0.9, 0)
	activate(t, r, types.ChannelVoice, 0.6, 0)
	activate(t, r, types.ChannelText, 0.4, 0)

	store := storeWith(types.ModalityConflict{
		ID:       "c1",
		Channels: []types.Channel{types.ChannelCamera, types.ChannelVoice, types.ChannelText},
		Kind:     types.ConflictResource,
		Strategy: types.StrategyPrioritizeConfidence,
	})
	res := NewResolver(store, r, &fakeCombiner{}, nil, nil)

	if err := res.Resolve("c1", ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	snap := r.Snapshot()
	active := snap.ActiveChannels()
	if len(active) != 1 || active[0] != types.ChannelCamera {
		t.Errorf("active channels = %v, want [camera]", active)
	}
	if c, _ := store.Get("c1"); !c.Resolved {
		t.Error("conflict should be resolved")
	}
}

func TestResolve_CombineInputs(t *testing.T) {
	r := newTestRegistry(t)
	activate(t, r, types.ChannelCamera, 0.9, 0)
	activate(t, r, types.ChannelVoice, 0.85, 0)

	combiner := &fakeCombiner{}
	store := storeWith(types.ModalityConflict{
		ID:       "c2",
		Channels: []types.Channel{types.ChannelCamera, types.ChannelVoice},
		Kind:     types.ConflictIntent,
		Strategy: types.StrategyCombineInputs,
	})
	res := NewResolver(store, r, combiner, nil, nil)

	if err := res.Resolve("c2", ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if len(combiner.calls) != 1 {
		t.Fatalf("combiner called %d times, want 1", len(combiner.calls))
	}
	if len(combiner.calls[0]) != 2 {
		t.Errorf("combine covered %v, want camera+voice", combiner.calls[0])
	}
}

func TestResolve_OptimizeSlowest(t *testing.T) {
	r := newTestRegistry(t)
	activate(t, r, types.ChannelCamera, 0.5, 1500*time.Millisecond)
	activate(t, r, types.ChannelVoice, 0.5, 1200*time.Millisecond)
	activate(t, r, types.ChannelText, 0.5, 500*time.Millisecond)

	optimizer := &fakeOptimizer{}
	store := storeWith(types.ModalityConflict{
		ID:       "c3",
		Channels: []types.Channel{types.ChannelCamera, types.ChannelVoice, types.ChannelText},
		Kind:     types.ConflictPerformance,
		Strategy: types.StrategyOptimizeSlowest,
	})
	res := NewResolver(store, r, &fakeCombiner{}, optimizer, nil)

	if err := res.Resolve("c3", ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if len(optimizer.calls) != 1 || optimizer.calls[0] != types.ChannelCamera {
		t.Errorf("optimizer calls = %v, want [camera]", optimizer.calls)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	r := newTestRegistry(t)
	activate(t, r, types.ChannelCamera, 0.9, 0)
	activate(t, r, types.ChannelVoice, 0.85, 0)

	combiner := &fakeCombiner{}
	store := storeWith(types.ModalityConflict{
		ID:       "c4",
		Channels: []types.Channel{types.ChannelCamera, types.ChannelVoice},
		Kind:     types.ConflictIntent,
		Strategy: types.StrategyCombineInputs,
	})
	res := NewResolver(store, r, combiner, nil, nil)

	if err := res.Resolve("c4", ""); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if err := res.Resolve("c4", ""); err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	// No additional state change: combiner ran exactly once.
	if len(combiner.calls) != 1 {
		t.Errorf("combiner called %d times after double resolve, want 1", len(combiner.calls))
	}
}

func TestResolve_StrategyOverride(t *testing.T) {
	r := newTestRegistry(t)
	activate(t, r, types.ChannelCamera, 0.9, 0)
	activate(t, r, types.ChannelVoice, 0.85, 0)

	combiner := &fakeCombiner{}
	store := storeWith(types.ModalityConflict{
		ID:       "c5",
		Channels: []types.Channel{types.ChannelCamera, types.ChannelVoice},
		Kind:     types.ConflictResource,
		Strategy: types.StrategyPrioritizeConfidence,
	})
	res := NewResolver(store, r, combiner, nil, nil)

	if err := res.Resolve("c5", types.StrategyCombineInputs); err != nil {
		t.Fatalf("resolve with override: %v", err)
	}
	if len(combiner.calls) != 1 {
		t.Error("override should have routed to the combiner")
	}
	// Both channels stay active: prioritize never ran.
	if got := len(r.Snapshot().ActiveChannels()); got != 2 {
		t.Errorf("active channels = %d, want 2", got)
	}
}

func TestResolve_UnknownConflict(t *testing.T) {
	res := NewResolver(NewStore(), newTestRegistry(t), &fakeCombiner{}, nil, nil)
	if err := res.Resolve("missing", ""); err == nil {
		t.Error("expected error for unknown conflict id")
	}
}

func TestResolve_UnknownOverride(t *testing.T) {
	store := storeWith(types.ModalityConflict{ID: "c6", Strategy: types.StrategyCombineInputs})
	res := NewResolver(store, newTestRegistry(t), &fakeCombiner{}, nil, nil)
	if err := res.Resolve("c6", types.ResolutionStrategy("bogus")); err == nil {
		t.Error("expected error for unknown strategy override")
	}
}

func TestResolve_FailureDemotedToSystemError(t *testing.T) {
	// All conflict channels already deactivated: prioritize cannot pick a
	// winner. The failure must be reported, not returned.
	r := newTestRegistry(t)

	var reported []types.SystemError
	store := storeWith(types.ModalityConflict{
		ID:       "c7",
		Channels: []types.Channel{types.ChannelCamera, types.ChannelVoice},
		Kind:     types.ConflictResource,
		Strategy: types.StrategyPrioritizeConfidence,
	})
	res := NewResolver(store, r, &fakeCombiner{}, nil, func(e types.SystemError) {
		reported = append(reported, e)
	})

	if err := res.Resolve("c7", ""); err != nil {
		t.Fatalf("resolution failure must not surface to the caller, got %v", err)
	}

	if len(reported) != 1 {
		t.Fatalf("reported %d errors, want 1", len(reported))
	}
	e := reported[0]
	if e.Type != types.ErrCoordinationFailed {
		t.Errorf("error type = %s, want coordination_failed", e.Type)
	}
	if e.Severity != types.SeverityLow {
		t.Errorf("severity = %s, want low", e.Severity)
	}
	if e.Channel != types.ChannelSystem {
		t.Errorf("channel = %s, want system", e.Channel)
	}
}

func TestResolve_CombinerFailureDemoted(t *testing.T) {
	r := newTestRegistry(t)
	activate(t, r, types.ChannelCamera, 0.9, 0)
	activate(t, r, types.ChannelVoice, 0.85, 0)

	var reported []types.SystemError
	store := storeWith(types.ModalityConflict{
		ID:       "c8",
		Channels: []types.Channel{types.ChannelCamera, types.ChannelVoice},
		Kind:     types.ConflictIntent,
		Strategy: types.StrategyCombineInputs,
	})
	res := NewResolver(store, r, &fakeCombiner{err: errors.New("interpreter offline")}, nil, func(e types.SystemError) {
		reported = append(reported, e)
	})

	if err := res.Resolve("c8", ""); err != nil {
		t.Fatalf("combiner failure must not surface, got %v", err)
	}
	if len(reported) != 1 {
		t.Errorf("reported %d errors, want 1", len(reported))
	}
}
