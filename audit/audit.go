// Package audit persists the session audit trail.
//
// The engine appends one record per coordination event (conflicts,
// syncs, errors, recovery outcomes, health transitions, announcements,
// fusion results). Records are JSON-lines encoded; backends exist for
// the local filesystem and S3-compatible object stores.
package audit

import (
	"sync"
	"time"
)

// Kind classifies one audit record.
type Kind string

const (
	KindConflict     Kind = "conflict"
	KindSync         Kind = "sync"
	KindError        Kind = "error"
	KindRecovery     Kind = "recovery"
	KindHealth       Kind = "health"
	KindAnnouncement Kind = "announcement"
	KindFusion       Kind = "fusion"
)

// Record is one audit trail entry.
type Record struct {
	// Kind classifies the record.
	Kind Kind `json:"kind"`
	// SessionID identifies the coordination session.
	SessionID string `json:"session_id"`
	// At is when the record was appended.
	At time.Time `json:"at"`
	// Payload is the event body, serialized as-is.
	Payload any `json:"payload,omitempty"`
}

// Sink receives audit records. Append must be safe for concurrent use.
type Sink interface {
	Append(Record) error
	Close() error
}

// NopSink discards all records.
type NopSink struct{}

// Append implements Sink.
func (NopSink) Append(Record) error { return nil }

// Close implements Sink.
func (NopSink) Close() error { return nil }

// MemorySink retains records in memory. Used in tests.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
	closed  bool
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append implements Sink.
func (m *MemorySink) Append(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Close implements Sink.
func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Records returns a copy of everything appended so far.
func (m *MemorySink) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

// Closed reports whether Close was called.
func (m *MemorySink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
