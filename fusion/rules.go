package fusion

import (
	"fmt"
	"time"

	"github.com/pithecene-io/tandem/types"
)

// Validation thresholds.
const (
	// MaxTimestampSkew is the tolerated cross-channel timestamp spread.
	MaxTimestampSkew = 500 * time.Millisecond
	// MaxInputLatency is the tolerated per-input processing latency.
	MaxInputLatency = 200 * time.Millisecond
)

// ruleKind tags one validation rule variant. Rules are dispatched
// through a fixed table rather than registered as ad-hoc closures, so
// the rule set stays inspectable and testable.
type ruleKind int

const (
	ruleImageDescription ruleKind = iota
	ruleAudioTranscript
	ruleTimestampSkew
	ruleInputLatency
)

// rule is one entry of the fixed validation table.
type rule struct {
	kind      ruleKind
	criterion string
	level     types.WCAGLevel
	severity  types.Severity
}

// ruleTable is the complete rule set. Validation filters it to rules at
// or below the configured conformance level.
var ruleTable = []rule{
	{ruleImageDescription, "1.1.1", types.WCAGLevelA, types.SeverityHigh},
	{ruleAudioTranscript, "1.2.1", types.WCAGLevelA, types.SeverityHigh},
	{ruleTimestampSkew, "2.2.1", types.WCAGLevelAA, types.SeverityMedium},
	{ruleInputLatency, "2.2.3", types.WCAGLevelAAA, types.SeverityLow},
}

// validate runs the filtered rule table against the batch and collects
// violations.
func validate(inputs []Input, level types.WCAGLevel) []types.WCAGViolation {
	var violations []types.WCAGViolation
	for _, r := range ruleTable {
		if !level.Includes(r.level) {
			continue
		}
		violations = append(violations, check(r, inputs)...)
	}
	return violations
}

// check dispatches one rule variant over the batch.
func check(r rule, inputs []Input) []types.WCAGViolation {
	switch r.kind {
	case ruleImageDescription:
		return contentRequired(r, inputs, types.ChannelCamera, "image input requires a textual description")
	case ruleAudioTranscript:
		return contentRequired(r, inputs, types.ChannelVoice, "audio input requires a transcript")
	case ruleTimestampSkew:
		return timestampSkew(r, inputs)
	case ruleInputLatency:
		return inputLatency(r, inputs)
	}
	return nil
}

// contentRequired flags inputs from the given channel with no rendered
// textual content.
func contentRequired(r rule, inputs []Input, ch types.Channel, description string) []types.WCAGViolation {
	var out []types.WCAGViolation
	for _, in := range inputs {
		if in.Channel == ch && in.Content == "" {
			out = append(out, types.WCAGViolation{
				Criterion:   r.criterion,
				Level:       r.level,
				Description: description,
				Channel:     ch,
				Severity:    r.severity,
			})
		}
	}
	return out
}

// timestampSkew flags the batch when the spread between the earliest and
// latest input exceeds MaxTimestampSkew. Attributed to the latest input.
func timestampSkew(r rule, inputs []Input) []types.WCAGViolation {
	if len(inputs) < 2 {
		return nil
	}
	earliest, latest := inputs[0], inputs[0]
	for _, in := range inputs[1:] {
		if in.Timestamp.Before(earliest.Timestamp) {
			earliest = in
		}
		if in.Timestamp.After(latest.Timestamp) {
			latest = in
		}
	}
	skew := latest.Timestamp.Sub(earliest.Timestamp)
	if skew <= MaxTimestampSkew {
		return nil
	}
	return []types.WCAGViolation{{
		Criterion:   r.criterion,
		Level:       r.level,
		Description: fmt.Sprintf("cross-channel timestamp skew %v exceeds %v", skew, MaxTimestampSkew),
		Channel:     latest.Channel,
		Severity:    r.severity,
	}}
}

// inputLatency flags every input whose processing latency exceeds
// MaxInputLatency.
func inputLatency(r rule, inputs []Input) []types.WCAGViolation {
	var out []types.WCAGViolation
	for _, in := range inputs {
		if in.ProcessingLatency > MaxInputLatency {
			out = append(out, types.WCAGViolation{
				Criterion:   r.criterion,
				Level:       r.level,
				Description: fmt.Sprintf("processing latency %v exceeds %v", in.ProcessingLatency, MaxInputLatency),
				Channel:     in.Channel,
				Severity:    r.severity,
			})
		}
	}
	return out
}
