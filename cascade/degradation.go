package cascade

import (
	"fmt"

	"github.com/pithecene-io/tandem/types"
)

// Features disabled when their backing channel fails.
const (
	featureVisualSearch = "visual_search"
	featureVoiceInput   = "voice_input"
	featureTextInput    = "text_input"
)

// channelFeature maps each input channel to the user-facing feature it
// backs.
var channelFeature = map[types.Channel]string{
	types.ChannelCamera: featureVisualSearch,
	types.ChannelVoice:  featureVoiceInput,
	types.ChannelText:   featureTextInput,
}

// fallbackFeature maps a disabled feature to its replacement. Text is
// the terminal fallback and has no replacement of its own.
var fallbackFeature = map[string]types.AlternativeWorkflow{
	featureVisualSearch: {
		OriginalFeature: featureVisualSearch,
		Alternative:     featureTextInput,
		Guidance:        "Camera is unavailable. Describe the product in the text box instead.",
	},
	featureVoiceInput: {
		OriginalFeature: featureVoiceInput,
		Alternative:     featureTextInput,
		Guidance:        "Voice input is unavailable. Type your query instead.",
	},
}

// deriveDegradationLocked derives the degradation policy from the
// current error set:
//
//   - any unresolved critical error escalates to minimal, or text_only
//     when text is the sole surviving input channel
//   - three or more unresolved errors escalate to partial
//   - otherwise none
//
// An operator pin set via ForceDegradation overrides the derived level.
// AvailableChannels is always the complement of failed channels.
// Caller must hold m.mu.
func (m *Manager) deriveDegradationLocked() types.GracefulDegradation {
	var available, failed []types.Channel
	for _, ch := range allChannels() {
		if m.channelHealthLocked(ch) == types.ChannelFailed {
			failed = append(failed, ch)
		} else {
			available = append(available, ch)
		}
	}

	d := types.GracefulDegradation{
		Level:             types.DegradationNone,
		AvailableChannels: available,
	}

	switch {
	case m.health == types.HealthCritical:
		d.Level = types.DegradationMinimal
		if m.onlyTextUsableLocked(available) {
			d.Level = types.DegradationTextOnly
		}
	case len(m.errors) >= partialErrorThreshold:
		d.Level = types.DegradationPartial
	}
	if m.forced != "" {
		d.Level = m.forced
	}
	if d.Level == types.DegradationNone {
		return d
	}

	for _, ch := range failed {
		feature, ok := channelFeature[ch]
		if !ok {
			continue
		}
		d.DisabledFeatures = append(d.DisabledFeatures, feature)
		if wf, ok := fallbackFeature[feature]; ok {
			d.AlternativeWorkflows = append(d.AlternativeWorkflows, wf)
			d.Notifications = append(d.Notifications, wf.Guidance)
		}
	}
	if len(d.Notifications) == 0 {
		d.Notifications = []string{fmt.Sprintf("Running with reduced functionality (%s).", d.Level)}
	}
	return d
}

// partialErrorThreshold is the unresolved-error count that triggers
// partial degradation.
const partialErrorThreshold = 3

// onlyTextUsableLocked reports whether text is the only usable input
// channel left. The system pseudo-channel does not count as an input.
func (m *Manager) onlyTextUsableLocked(available []types.Channel) bool {
	textUp := false
	for _, ch := range available {
		switch ch {
		case types.ChannelText:
			textUp = true
		case types.ChannelSystem:
		default:
			return false
		}
	}
	return textUp
}
