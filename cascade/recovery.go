package cascade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pithecene-io/tandem/types"
)

// Recovery action names dispatched to the step runner.
const (
	ActionPromptPermission = "prompt_permission"
	ActionReacquireDevice  = "reacquire_device"
	ActionReconnect        = "reconnect"
	ActionRestartPipeline  = "restart_pipeline"
	ActionSwitchToText     = "switch_to_text"
)

// StepRunner executes one named recovery action against the live
// system. Implementations reacquire devices, reconnect transports, or
// restart processing pipelines.
type StepRunner interface {
	RunAction(ctx context.Context, action string, target types.Channel) error
}

// NopRunner succeeds on every action. Used in tests and dry runs.
type NopRunner struct{}

func (NopRunner) RunAction(context.Context, string, types.Channel) error { return nil }

// BuildPlan assembles a recovery plan for the given unresolved errors
// and stores it for later execution. The strategy is derived from the
// plan's shape: any non-automated step forces manual, errors spanning
// several channels recover in parallel, a single error with a fallback
// chain runs failover, and everything else runs sequentially.
func (m *Manager) BuildPlan(errorIDs ...string) (types.RecoveryPlan, error) {
	if len(errorIDs) == 0 {
		return types.RecoveryPlan{}, fmt.Errorf("build plan: no target errors")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var steps []types.RecoveryStep
	channels := make(map[types.Channel]bool)
	probability := 1.0
	for _, id := range errorIDs {
		e, ok := m.errors[id]
		if !ok {
			return types.RecoveryPlan{}, fmt.Errorf("build plan: error %q not found", id)
		}
		channels[e.Channel] = true
		steps = append(steps, stepsFor(*e)...)
		probability *= recoveryOdds(*e)
	}

	plan := types.RecoveryPlan{
		ID:                 m.newID(),
		TargetErrorIDs:     append([]string(nil), errorIDs...),
		Strategy:           deriveStrategy(steps, len(channels)),
		Steps:              steps,
		SuccessProbability: probability,
	}
	for _, s := range steps {
		plan.EstimatedDuration += s.ExpectedDuration
	}
	if plan.Strategy == types.RecoveryManual {
		plan.RequiresConfirmation = true
	}

	m.plans[plan.ID] = &plan
	return plan, nil
}

// Plan returns a stored plan by id.
func (m *Manager) Plan(id string) (types.RecoveryPlan, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return types.RecoveryPlan{}, false
	}
	return *p, true
}

// stepsFor maps one error to its recovery steps by taxonomy family.
func stepsFor(e types.SystemError) []types.RecoveryStep {
	switch e.Type {
	case types.ErrCameraPermissionDenied, types.ErrMicPermissionDenied:
		return []types.RecoveryStep{{
			Action:           ActionPromptPermission,
			TargetChannel:    e.Channel,
			ExpectedDuration: 30 * time.Second,
			Automated:        false,
			SuccessCriterion: "permission granted and device stream opens",
			FallbackAction:   ActionSwitchToText,
		}}
	case types.ErrCameraNotFound, types.ErrCameraInUse, types.ErrCameraHardwareFault,
		types.ErrMicNotFound, types.ErrMicInUse, types.ErrAudioHardwareFault:
		return []types.RecoveryStep{{
			Action:           ActionReacquireDevice,
			TargetChannel:    e.Channel,
			ExpectedDuration: 5 * time.Second,
			Automated:        true,
			SuccessCriterion: "device stream reopens",
			FallbackAction:   ActionSwitchToText,
		}}
	case types.ErrConnectionFailed, types.ErrConnectionLost,
		types.ErrRequestTimeout, types.ErrServiceUnavailable:
		return []types.RecoveryStep{{
			Action:           ActionReconnect,
			TargetChannel:    e.Channel,
			ExpectedDuration: 10 * time.Second,
			Automated:        true,
			SuccessCriterion: "transport reconnects and a probe round-trips",
		}}
	default:
		return []types.RecoveryStep{{
			Action:           ActionRestartPipeline,
			TargetChannel:    e.Channel,
			ExpectedDuration: 5 * time.Second,
			Automated:        true,
			SuccessCriterion: "pipeline restarts without error",
		}}
	}
}

// recoveryOdds estimates per-error recovery probability by severity.
func recoveryOdds(e types.SystemError) float64 {
	if !e.Recoverable {
		return 0.1
	}
	switch e.Severity {
	case types.SeverityCritical:
		return 0.5
	case types.SeverityHigh:
		return 0.7
	default:
		return 0.9
	}
}

func deriveStrategy(steps []types.RecoveryStep, channelCount int) types.RecoveryStrategy {
	for _, s := range steps {
		if !s.Automated {
			return types.RecoveryManual
		}
	}
	if channelCount > 1 {
		return types.RecoveryParallel
	}
	if len(steps) == 1 && steps[0].FallbackAction != "" {
		return types.RecoveryFailoverChain
	}
	return types.RecoverySequential
}

// Executor runs recovery plans against a step runner.
type Executor struct {
	manager *Manager
	runner  StepRunner
	now     func() time.Time
}

// NewExecutor creates an executor bound to the manager's plan store.
func NewExecutor(m *Manager, runner StepRunner) *Executor {
	if runner == nil {
		runner = NopRunner{}
	}
	return &Executor{manager: m, runner: runner, now: m.now}
}

// Execute runs a stored plan. Plans requiring confirmation refuse to
// run unless confirmed. Each target error gets one retry recorded; on
// full success all target errors are resolved. Canceling ctx aborts
// between steps and marks the outcome aborted.
func (x *Executor) Execute(ctx context.Context, planID string, confirmed bool) (types.RecoveryOutcome, error) {
	plan, ok := x.manager.Plan(planID)
	if !ok {
		return types.RecoveryOutcome{}, fmt.Errorf("execute: plan %q not found", planID)
	}
	if plan.RequiresConfirmation && !confirmed {
		return types.RecoveryOutcome{}, fmt.Errorf("execute: plan %q requires confirmation", planID)
	}

	for _, id := range plan.TargetErrorIDs {
		// Exhausted errors flip to non-recoverable inside RecordRetry;
		// execution still proceeds since the caller asked for it.
		_, _ = x.manager.RecordRetry(id)
	}

	start := x.now()
	outcome := types.RecoveryOutcome{PlanID: plan.ID}

	switch plan.Strategy {
	case types.RecoveryParallel:
		outcome.StepResults = x.runParallel(ctx, plan.Steps)
	case types.RecoveryFailoverChain:
		outcome.StepResults = x.runFailover(ctx, plan.Steps)
	default:
		// Sequential and confirmed manual plans run in declared order.
		outcome.StepResults = x.runSequential(ctx, plan.Steps)
	}
	outcome.Duration = x.now().Sub(start)

	if ctx.Err() != nil {
		outcome.Aborted = true
		return outcome, nil
	}

	outcome.Succeeded = judge(plan.Strategy, outcome.StepResults, len(plan.Steps))
	if outcome.Succeeded {
		for _, id := range plan.TargetErrorIDs {
			_ = x.manager.Resolve(id)
		}
	}
	return outcome, nil
}

// judge decides plan success from per-step results.
func judge(strategy types.RecoveryStrategy, results []types.StepResult, total int) bool {
	if strategy == types.RecoveryFailoverChain {
		for _, r := range results {
			if r.Succeeded {
				return true
			}
		}
		return false
	}
	if len(results) < total {
		return false
	}
	for _, r := range results {
		if !r.Succeeded {
			return false
		}
	}
	return true
}

// runStep runs one step under its expected-duration deadline, falling
// back to the step's fallback action on failure.
func (x *Executor) runStep(ctx context.Context, step types.RecoveryStep) types.StepResult {
	begin := x.now()
	stepCtx := ctx
	if step.ExpectedDuration > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, step.ExpectedDuration)
		defer cancel()
	}

	result := types.StepResult{Action: step.Action}
	err := x.runner.RunAction(stepCtx, step.Action, step.TargetChannel)
	if err != nil && step.FallbackAction != "" && ctx.Err() == nil {
		result.UsedFallback = true
		err = x.runner.RunAction(stepCtx, step.FallbackAction, step.TargetChannel)
	}
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Succeeded = true
	}
	result.Duration = x.now().Sub(begin)
	return result
}

// runSequential runs steps in order, stopping on the first failure or
// on cancellation.
func (x *Executor) runSequential(ctx context.Context, steps []types.RecoveryStep) []types.StepResult {
	var results []types.StepResult
	for _, step := range steps {
		if ctx.Err() != nil {
			return results
		}
		r := x.runStep(ctx, step)
		results = append(results, r)
		if !r.Succeeded {
			return results
		}
	}
	return results
}

// runFailover runs steps in order until one succeeds.
func (x *Executor) runFailover(ctx context.Context, steps []types.RecoveryStep) []types.StepResult {
	var results []types.StepResult
	for _, step := range steps {
		if ctx.Err() != nil {
			return results
		}
		r := x.runStep(ctx, step)
		results = append(results, r)
		if r.Succeeded {
			return results
		}
	}
	return results
}

// runParallel runs all steps concurrently and collects results in
// declared order.
func (x *Executor) runParallel(ctx context.Context, steps []types.RecoveryStep) []types.StepResult {
	results := make([]types.StepResult, len(steps))
	var wg sync.WaitGroup
	for i, step := range steps {
		wg.Add(1)
		go func(i int, step types.RecoveryStep) {
			defer wg.Done()
			results[i] = x.runStep(ctx, step)
		}(i, step)
	}
	wg.Wait()
	return results
}
