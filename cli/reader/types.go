// Package reader provides the read-side data access layer for the tandem CLI.
//
// Read-only commands load persisted audit trail files through this
// package; they never touch a live engine.
package reader

import (
	"time"

	"github.com/pithecene-io/tandem/audit"
)

// Trail is a parsed audit trail file.
type Trail struct {
	Path    string         `json:"path"`
	Records []audit.Record `json:"records"`
	// Skipped counts malformed lines that could not be parsed.
	Skipped int          `json:"skipped"`
	Summary TrailSummary `json:"summary"`
}

// HealthTransition is one aggregate health change within a trail.
type HealthTransition struct {
	At          time.Time `json:"at"`
	Health      string    `json:"health"`
	Degradation string    `json:"degradation"`
}

// TrailSummary aggregates a trail by record kind.
type TrailSummary struct {
	SessionID       string             `json:"session_id"`
	Records         int                `json:"records"`
	Counts          map[string]int     `json:"counts"`
	FirstAt         *time.Time         `json:"first_at"`
	LastAt          *time.Time         `json:"last_at"`
	Transitions     []HealthTransition `json:"health_transitions"`
	LastHealth      string             `json:"last_health"`
	LastDegradation string             `json:"last_degradation"`
}
