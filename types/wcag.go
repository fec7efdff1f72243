package types

// WCAGLevel is an accessibility conformance tier.
type WCAGLevel string

const (
	WCAGLevelA   WCAGLevel = "A"
	WCAGLevelAA  WCAGLevel = "AA"
	WCAGLevelAAA WCAGLevel = "AAA"
)

var wcagRank = map[WCAGLevel]int{
	WCAGLevelA:   1,
	WCAGLevelAA:  2,
	WCAGLevelAAA: 3,
}

// Includes reports whether a target conformance level includes rules at
// the given level (AA includes A, AAA includes everything).
func (l WCAGLevel) Includes(ruleLevel WCAGLevel) bool {
	return wcagRank[ruleLevel] <= wcagRank[l]
}

// Valid returns true if l is a known conformance level.
func (l WCAGLevel) Valid() bool {
	_, ok := wcagRank[l]
	return ok
}

// WCAGViolation is one failed validation rule.
// Produced transiently by the validation engine; not persisted beyond
// the current fusion result.
type WCAGViolation struct {
	// Criterion is the WCAG success criterion (e.g. "1.1.1").
	Criterion string `json:"criterion"`
	// Level is the conformance tier the criterion belongs to.
	Level WCAGLevel `json:"level"`
	// Description explains the violation.
	Description string `json:"description"`
	// Channel is the channel the violating input came from.
	Channel Channel `json:"channel"`
	// Severity grades the violation.
	Severity Severity `json:"severity"`
}
