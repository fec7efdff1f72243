package types

import (
	"fmt"
	"time"
)

// ErrorType names one failure kind in the engine's error taxonomy.
// Types are grouped into device (camera/voice), text, search, network,
// and system families.
type ErrorType string

// Camera family.
const (
	ErrCameraPermissionDenied ErrorType = "camera_permission_denied"
	ErrCameraNotFound         ErrorType = "camera_not_found"
	ErrCameraInUse            ErrorType = "camera_in_use"
	ErrCameraHardwareFault    ErrorType = "camera_hardware_fault"
	ErrCameraCaptureFailed    ErrorType = "camera_capture_failed"
	ErrCameraStreamEnded      ErrorType = "camera_stream_ended"
)

// Voice family.
const (
	ErrMicPermissionDenied     ErrorType = "mic_permission_denied"
	ErrMicNotFound             ErrorType = "mic_not_found"
	ErrMicInUse                ErrorType = "mic_in_use"
	ErrAudioHardwareFault      ErrorType = "audio_hardware_fault"
	ErrSpeechRecognitionFailed ErrorType = "speech_recognition_failed"
	ErrSpeechSynthesisFailed   ErrorType = "speech_synthesis_failed"
)

// Text family.
const (
	ErrTextInputFailed      ErrorType = "text_input_failed"
	ErrTextProcessingFailed ErrorType = "text_processing_failed"
	ErrTextInputTooLong     ErrorType = "text_input_too_long"
)

// Search family.
const (
	ErrSearchFailed       ErrorType = "search_failed"
	ErrSearchTimeout      ErrorType = "search_timeout"
	ErrSearchInvalidInput ErrorType = "search_invalid_input"
	ErrSearchNoResults    ErrorType = "search_no_results"
)

// Network family.
const (
	ErrConnectionFailed   ErrorType = "connection_failed"
	ErrConnectionLost     ErrorType = "connection_lost"
	ErrRateLimited        ErrorType = "rate_limited"
	ErrRequestTimeout     ErrorType = "request_timeout"
	ErrServiceUnavailable ErrorType = "service_unavailable"
)

// System family.
const (
	ErrUnsupportedEnvironment ErrorType = "unsupported_environment"
	ErrResourceLimitExceeded  ErrorType = "resource_limit_exceeded"
	ErrSecurityViolation      ErrorType = "security_violation"
	ErrCoordinationFailed     ErrorType = "coordination_failed"
	ErrUnknown                ErrorType = "unknown"
)

// Severity grades how serious a system error is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// rank orders severities for comparison.
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// UserImpact grades how strongly an error affects the user.
type UserImpact string

const (
	ImpactNone     UserImpact = "none"
	ImpactMinor    UserImpact = "minor"
	ImpactMajor    UserImpact = "major"
	ImpactBlocking UserImpact = "blocking"
)

// SystemError is one reported error in the cascade manager.
// Mutated only by retry accounting; removed only by explicit resolution.
type SystemError struct {
	// ID is the unique error identifier.
	ID string `json:"id"`
	// Type is the taxonomy kind.
	Type ErrorType `json:"type"`
	// Channel is the channel the error originated on.
	Channel Channel `json:"channel"`
	// Severity grades the error.
	Severity Severity `json:"severity"`
	// Message is a human-readable description.
	Message string `json:"message"`
	// Recoverable is true while automatic recovery may still be attempted.
	// Flips to false once RetryCount reaches MaxRetries.
	Recoverable bool `json:"recoverable"`
	// ReportedAt is when the error was reported.
	ReportedAt time.Time `json:"reported_at"`
	// RetryCount is the number of recovery attempts so far.
	RetryCount int `json:"retry_count"`
	// MaxRetries bounds automatic recovery attempts.
	MaxRetries int `json:"max_retries"`
	// Context carries key/value diagnostic details.
	Context map[string]string `json:"context,omitempty"`
	// RelatedErrorIDs links cascading errors to their root cause.
	RelatedErrorIDs []string `json:"related_error_ids,omitempty"`
	// UserImpact grades the user-visible effect.
	UserImpact UserImpact `json:"user_impact"`
	// SuggestedActions are machine-readable remediation hints.
	SuggestedActions []string `json:"suggested_actions,omitempty"`
}

// Validate checks error invariants.
func (e *SystemError) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("error type must be non-empty")
	}
	if !e.Channel.Valid() && e.Channel != ChannelSystem {
		return fmt.Errorf("unknown channel %q", e.Channel)
	}
	if e.RetryCount > e.MaxRetries {
		return fmt.Errorf("retry count %d exceeds max retries %d", e.RetryCount, e.MaxRetries)
	}
	return nil
}

// ChannelSystem is a pseudo-channel for errors not tied to a single
// input channel (environment, security, coordination failures).
const ChannelSystem Channel = "system"

// HealthStatus is the aggregate system health.
type HealthStatus string

const (
	// HealthHealthy means no unresolved errors exist.
	HealthHealthy HealthStatus = "healthy"
	// HealthDegraded means at least one unresolved error exists.
	HealthDegraded HealthStatus = "degraded"
	// HealthCritical means at least one unresolved error is critical.
	HealthCritical HealthStatus = "critical"
)

// ChannelHealth is the cascade manager's per-channel operational status.
type ChannelHealth string

const (
	// ChannelOperational means no unresolved errors on the channel.
	ChannelOperational ChannelHealth = "operational"
	// ChannelDegradedHealth means the channel has unresolved errors.
	ChannelDegradedHealth ChannelHealth = "degraded"
	// ChannelFailed means the channel has an unresolved critical error.
	ChannelFailed ChannelHealth = "failed"
)
