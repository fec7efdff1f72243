package types

import "time"

// RecoveryStrategy is the execution mode of a recovery plan.
type RecoveryStrategy string

const (
	// RecoveryParallel runs all steps concurrently.
	RecoveryParallel RecoveryStrategy = "parallel"
	// RecoverySequential runs steps in declared order, stopping on failure.
	RecoverySequential RecoveryStrategy = "sequential"
	// RecoveryFailoverChain runs steps in order until one succeeds.
	RecoveryFailoverChain RecoveryStrategy = "failover_chain"
	// RecoveryManual requires user confirmation before any step runs.
	RecoveryManual RecoveryStrategy = "manual"
)

// RecoveryStep is one action inside a recovery plan.
type RecoveryStep struct {
	// Action is the named recovery action (e.g. "reacquire_device").
	Action string `json:"action"`
	// TargetChannel is the channel the action applies to, empty for
	// system-wide actions.
	TargetChannel Channel `json:"target_channel,omitempty"`
	// ExpectedDuration bounds how long the step may take.
	ExpectedDuration time.Duration `json:"expected_duration"`
	// Automated is false for steps that need user interaction.
	Automated bool `json:"automated"`
	// SuccessCriterion describes how step success is judged.
	SuccessCriterion string `json:"success_criterion"`
	// FallbackAction runs if the step fails, empty for none.
	FallbackAction string `json:"fallback_action,omitempty"`
}

// RecoveryPlan groups steps that address one or more reported errors.
type RecoveryPlan struct {
	// ID is the unique plan identifier.
	ID string `json:"id"`
	// TargetErrorIDs are the errors this plan addresses.
	TargetErrorIDs []string `json:"target_error_ids"`
	// Strategy is the execution mode.
	Strategy RecoveryStrategy `json:"strategy"`
	// Steps are executed per the strategy.
	Steps []RecoveryStep `json:"steps"`
	// EstimatedDuration is the expected total execution time.
	EstimatedDuration time.Duration `json:"estimated_duration"`
	// SuccessProbability is the estimated chance of full recovery, in [0, 1].
	SuccessProbability float64 `json:"success_probability"`
	// RequiresConfirmation is true when the plan must not auto-execute.
	RequiresConfirmation bool `json:"requires_confirmation"`
}

// RecoveryOutcome is the result of executing one recovery plan.
type RecoveryOutcome struct {
	// PlanID is the executed plan.
	PlanID string `json:"plan_id"`
	// Succeeded is true when every required step succeeded.
	Succeeded bool `json:"succeeded"`
	// Aborted is true when the caller canceled execution mid-plan.
	Aborted bool `json:"aborted"`
	// StepResults records per-step outcomes in execution order.
	StepResults []StepResult `json:"step_results"`
	// Duration is the total execution time.
	Duration time.Duration `json:"duration"`
}

// StepResult records the outcome of one recovery step.
type StepResult struct {
	// Action is the step's action name.
	Action string `json:"action"`
	// Succeeded is true when the step (or its fallback) succeeded.
	Succeeded bool `json:"succeeded"`
	// UsedFallback is true when the fallback action ran.
	UsedFallback bool `json:"used_fallback"`
	// Error describes the failure, empty on success.
	Error string `json:"error,omitempty"`
	// Duration is how long the step took.
	Duration time.Duration `json:"duration"`
}
