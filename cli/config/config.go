package config

import (
	"fmt"
	"time"

	"github.com/pithecene-io/tandem/types"
)

// Config represents a tandem.yaml configuration file.
// All values are optional and act as defaults for tandem run flags.
// CLI flags always override config values.
type Config struct {
	Session  SessionConfig   `yaml:"session"`
	Engine   EngineConfig    `yaml:"engine"`
	Audit    AuditConfig     `yaml:"audit"`
	Adapters []AdapterConfig `yaml:"adapters"`
}

// SessionConfig holds session identity defaults from the config file.
type SessionConfig struct {
	ID        string `yaml:"id"`
	UserAgent string `yaml:"user_agent"`
}

// EngineConfig holds engine tuning defaults from the config file.
// Zero values defer to the engine's own defaults.
type EngineConfig struct {
	Channels          []string `yaml:"channels"`
	TickInterval      Duration `yaml:"tick_interval"`
	MaxTotalLatency   Duration `yaml:"max_total_latency"`
	FusionBudget      Duration `yaml:"fusion_budget"`
	WCAGLevel         string   `yaml:"wcag_level"`
	MaxActiveChannels int      `yaml:"max_active_channels"`
	IntentThreshold   float64  `yaml:"intent_threshold"`
	AnnouncementTTL   Duration `yaml:"announcement_ttl"`
}

// AuditConfig holds audit trail storage defaults from the config file.
type AuditConfig struct {
	Backend     string `yaml:"backend"` // fs, s3, or none
	Path        string `yaml:"path"`    // fs: directory, s3: bucket/prefix
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig is a notification adapter definition within the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"` // redis or webhook
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// AvailableChannels converts the configured channel names into validated
// types.Channel values. An empty list means all channels.
func (e *EngineConfig) AvailableChannels() ([]types.Channel, error) {
	if len(e.Channels) == 0 {
		return nil, nil
	}
	channels := make([]types.Channel, 0, len(e.Channels))
	for _, name := range e.Channels {
		ch := types.Channel(name)
		if !ch.Valid() {
			return nil, fmt.Errorf("unknown channel %q (must be one of camera, voice, text)", name)
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// ConformanceLevel converts the configured WCAG level string.
// An empty string defers to the engine default.
func (e *EngineConfig) ConformanceLevel() (types.WCAGLevel, error) {
	switch e.WCAGLevel {
	case "":
		return "", nil
	case string(types.WCAGLevelA):
		return types.WCAGLevelA, nil
	case string(types.WCAGLevelAA):
		return types.WCAGLevelAA, nil
	case string(types.WCAGLevelAAA):
		return types.WCAGLevelAAA, nil
	default:
		return "", fmt.Errorf("unknown wcag_level %q (must be A, AA, or AAA)", e.WCAGLevel)
	}
}
