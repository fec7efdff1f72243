package types

// DegradationLevel grades the reduced-functionality operating mode.
type DegradationLevel string

const (
	// DegradationNone means full functionality.
	DegradationNone DegradationLevel = "none"
	// DegradationPartial means some features are disabled.
	DegradationPartial DegradationLevel = "partial"
	// DegradationMinimal means only essential features remain.
	DegradationMinimal DegradationLevel = "minimal"
	// DegradationTextOnly means only the text channel remains usable.
	DegradationTextOnly DegradationLevel = "text_only"
)

// Valid reports whether l is a known degradation level.
func (l DegradationLevel) Valid() bool {
	switch l {
	case DegradationNone, DegradationPartial, DegradationMinimal, DegradationTextOnly:
		return true
	}
	return false
}

// AlternativeWorkflow maps a disabled feature to its fallback.
type AlternativeWorkflow struct {
	// OriginalFeature is the feature that became unavailable.
	OriginalFeature string `json:"original_feature"`
	// Alternative is the replacement feature.
	Alternative string `json:"alternative"`
	// Guidance is human-readable instructions for the user.
	Guidance string `json:"guidance"`
}

// GracefulDegradation is the current reduced-functionality policy.
// Recomputed whenever aggregate system health changes.
type GracefulDegradation struct {
	// Level grades the degradation.
	Level DegradationLevel `json:"level"`
	// AvailableChannels is the complement of channels currently failed.
	AvailableChannels []Channel `json:"available_channels"`
	// DisabledFeatures lists features switched off at this level.
	DisabledFeatures []string `json:"disabled_features,omitempty"`
	// AlternativeWorkflows map each disabled feature to its fallback.
	AlternativeWorkflows []AlternativeWorkflow `json:"alternative_workflows,omitempty"`
	// Notifications are user-facing messages explaining the degradation.
	Notifications []string `json:"notifications,omitempty"`
}

// ChannelAvailable reports whether the given channel remains usable.
func (g *GracefulDegradation) ChannelAvailable(ch Channel) bool {
	for _, c := range g.AvailableChannels {
		if c == ch {
			return true
		}
	}
	return false
}
