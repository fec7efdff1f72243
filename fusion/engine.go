// Package fusion implements the accessibility fusion and validation
// engine.
//
// Fusion merges the most recent input from each channel into one fused
// description with a chosen primary channel, then validates the batch
// against a fixed WCAG rule table filtered to the configured conformance
// level. The latency budget is a soft deadline: on overrun the engine
// still returns the result, flagged as budget-exceeding.
package fusion

import (
	"strings"
	"time"

	"github.com/pithecene-io/tandem/types"
)

// DefaultBudget is the default fusion latency budget, measured from the
// earliest input timestamp in the batch.
const DefaultBudget = 200 * time.Millisecond

// Score weights for primary-channel selection.
const (
	recencyWeight    = 0.3
	confidenceWeight = 0.7
)

// recencyWindow normalizes input age into [0, 1].
const recencyWindow = time.Second

// Input is one channel's most recent input presented for fusion.
type Input struct {
	// Channel is the originating channel.
	Channel types.Channel
	// Content is the channel's rendered textual content: a description
	// for camera frames, a transcript for voice, the text itself for text.
	Content string
	// Confidence is the channel-reported confidence, in [0, 1].
	Confidence float64
	// Timestamp is when the input was produced.
	Timestamp time.Time
	// ProcessingLatency is the channel's reported processing latency.
	ProcessingLatency time.Duration
}

// Result is the outcome of one fusion pass.
type Result struct {
	// Primary is the selected primary channel.
	Primary types.Channel
	// FusedContent is the combined description: primary content first,
	// then the remaining channels in priority order, empties skipped.
	FusedContent string
	// Scores maps each channel to its selection score.
	Scores map[types.Channel]float64
	// Level is the conformance level the batch was validated against.
	Level types.WCAGLevel
	// Violations lists every failed rule at or below Level.
	Violations []types.WCAGViolation
	// Passed is true when Violations is empty.
	Passed bool
	// Duration is the fusion time measured from the earliest input.
	Duration time.Duration
	// BudgetExceeded is true when Duration overran the budget.
	BudgetExceeded bool
}

// Config tunes the fusion engine.
type Config struct {
	// Budget is the soft latency deadline (default 200ms).
	Budget time.Duration
	// Level is the WCAG conformance target (default AA).
	Level types.WCAGLevel
}

// Engine fuses per-channel inputs and validates accessibility rules.
type Engine struct {
	config Config
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates a fusion engine, filling config zero-values with defaults.
func New(config Config, opts ...Option) *Engine {
	if config.Budget <= 0 {
		config.Budget = DefaultBudget
	}
	if !config.Level.Valid() {
		config.Level = types.WCAGLevelAA
	}
	e := &Engine{config: config, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fuse merges the batch into one fused description and validates it.
// Primary selection is a pure function of the inputs' (confidence,
// timestamp) pairs: identical batches always select the same primary.
func (e *Engine) Fuse(inputs []Input) Result {
	now := e.now()

	result := Result{
		Level:  e.config.Level,
		Scores: make(map[types.Channel]float64, len(inputs)),
	}
	if len(inputs) == 0 {
		result.Passed = true
		return result
	}

	// Score each channel: 0.3 x recency + 0.7 x confidence.
	byChannel := make(map[types.Channel]Input, len(inputs))
	for _, in := range inputs {
		byChannel[in.Channel] = in
		result.Scores[in.Channel] = score(in, now)
	}

	result.Primary = pickPrimary(result.Scores)
	result.FusedContent = fuseContent(byChannel, result.Primary)

	result.Violations = validate(inputs, e.config.Level)
	result.Passed = len(result.Violations) == 0

	// Budget is measured from the earliest input timestamp in the batch.
	earliest := inputs[0].Timestamp
	for _, in := range inputs[1:] {
		if in.Timestamp.Before(earliest) {
			earliest = in.Timestamp
		}
	}
	result.Duration = now.Sub(earliest)
	result.BudgetExceeded = result.Duration > e.config.Budget

	return result
}

// score computes one channel's selection score.
func score(in Input, now time.Time) float64 {
	recency := 1 - float64(now.Sub(in.Timestamp))/float64(recencyWindow)
	if recency < 0 {
		recency = 0
	}
	if recency > 1 {
		recency = 1
	}
	return recencyWeight*recency + confidenceWeight*in.Confidence
}

// pickPrimary selects the channel with the highest score. Exact ties
// break by static channel priority (text > camera > voice).
func pickPrimary(scores map[types.Channel]float64) types.Channel {
	var primary types.Channel
	best := -1.0
	for _, ch := range types.Channels() {
		s, ok := scores[ch]
		if !ok {
			continue
		}
		if s > best {
			primary = ch
			best = s
		}
	}
	return primary
}

// fuseContent appends the primary channel's content first, then all
// other channels in priority order, skipping empty strings.
func fuseContent(byChannel map[types.Channel]Input, primary types.Channel) string {
	var parts []string
	if in, ok := byChannel[primary]; ok && in.Content != "" {
		parts = append(parts, in.Content)
	}
	for _, ch := range types.Channels() {
		if ch == primary {
			continue
		}
		if in, ok := byChannel[ch]; ok && in.Content != "" {
			parts = append(parts, in.Content)
		}
	}
	return strings.Join(parts, " ")
}
