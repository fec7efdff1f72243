package reader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/tandem/audit"
)

const sampleTrail = `{"kind":"conflict","session_id":"sess-001","at":"2026-08-01T12:00:00Z","payload":{"id":"c-1","kind":"intent_conflict"}}
{"kind":"sync","session_id":"sess-001","at":"2026-08-01T12:00:01Z","payload":{"id":"s-1"}}
{"kind":"error","session_id":"sess-001","at":"2026-08-01T12:00:02Z","payload":{"id":"e-1","severity":"critical"}}
{"kind":"health","session_id":"sess-001","at":"2026-08-01T12:00:03Z","payload":{"health":"critical","degradation":{"level":"minimal"}}}
{"kind":"health","session_id":"sess-001","at":"2026-08-01T12:00:04Z","payload":{"health":"healthy","degradation":{"level":"none"}}}
`

func writeTrail(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sess-001.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write trail: %v", err)
	}
	return path
}

func TestReadTrail_SummaryAndTransitions(t *testing.T) {
	trail, err := ReadTrail(writeTrail(t, sampleTrail))
	if err != nil {
		t.Fatalf("ReadTrail: %v", err)
	}

	if trail.Skipped != 0 {
		t.Errorf("skipped = %d, want 0", trail.Skipped)
	}
	if len(trail.Records) != 5 {
		t.Fatalf("records = %d, want 5", len(trail.Records))
	}

	s := trail.Summary
	if s.SessionID != "sess-001" {
		t.Errorf("session id = %q", s.SessionID)
	}
	if s.Records != 5 {
		t.Errorf("summary records = %d, want 5", s.Records)
	}
	if s.Counts["health"] != 2 || s.Counts["conflict"] != 1 || s.Counts["sync"] != 1 || s.Counts["error"] != 1 {
		t.Errorf("counts = %v", s.Counts)
	}

	wantFirst := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	wantLast := time.Date(2026, 8, 1, 12, 0, 4, 0, time.UTC)
	if s.FirstAt == nil || !s.FirstAt.Equal(wantFirst) {
		t.Errorf("first at = %v, want %v", s.FirstAt, wantFirst)
	}
	if s.LastAt == nil || !s.LastAt.Equal(wantLast) {
		t.Errorf("last at = %v, want %v", s.LastAt, wantLast)
	}

	if len(s.Transitions) != 2 {
		t.Fatalf("transitions = %d, want 2", len(s.Transitions))
	}
	if s.Transitions[0].Health != "critical" || s.Transitions[0].Degradation != "minimal" {
		t.Errorf("first transition = %+v", s.Transitions[0])
	}
	if s.LastHealth != "healthy" || s.LastDegradation != "none" {
		t.Errorf("last health = %q / %q", s.LastHealth, s.LastDegradation)
	}
}

func TestReadTrail_SkipsMalformedLines(t *testing.T) {
	content := sampleTrail + "not json at all\n" + `{"truncated": tru` + "\n"
	trail, err := ReadTrail(writeTrail(t, content))
	if err != nil {
		t.Fatalf("ReadTrail: %v", err)
	}
	if trail.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", trail.Skipped)
	}
	if len(trail.Records) != 5 {
		t.Errorf("records = %d, want 5", len(trail.Records))
	}
}

func TestReadTrail_SkipsRecordsWithoutKind(t *testing.T) {
	trail, err := ReadTrail(writeTrail(t, `{"session_id":"sess-001"}`+"\n"))
	if err != nil {
		t.Fatalf("ReadTrail: %v", err)
	}
	if trail.Skipped != 1 || len(trail.Records) != 0 {
		t.Errorf("skipped = %d, records = %d", trail.Skipped, len(trail.Records))
	}
}

func TestReadTrail_EmptyFile(t *testing.T) {
	trail, err := ReadTrail(writeTrail(t, ""))
	if err != nil {
		t.Fatalf("ReadTrail: %v", err)
	}
	if len(trail.Records) != 0 || trail.Summary.Records != 0 {
		t.Errorf("expected empty trail, got %+v", trail.Summary)
	}
	if trail.Summary.FirstAt != nil {
		t.Error("expected nil first_at for empty trail")
	}
}

func TestReadTrail_FileNotFound(t *testing.T) {
	_, err := ReadTrail("/nonexistent/trail.jsonl")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v", err)
	}
}

func TestByKind(t *testing.T) {
	trail, err := ReadTrail(writeTrail(t, sampleTrail))
	if err != nil {
		t.Fatalf("ReadTrail: %v", err)
	}

	health := trail.ByKind(audit.KindHealth)
	if len(health) != 2 {
		t.Errorf("health records = %d, want 2", len(health))
	}
	if got := trail.ByKind(audit.KindRecovery); got != nil {
		t.Errorf("recovery records = %v, want nil", got)
	}
}
