package reader

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pithecene-io/tandem/audit"
)

// maxLineSize bounds a single trail line. Fusion payloads carry channel
// content, so lines can be large.
const maxLineSize = 1 << 20

// ReadTrail parses a JSON-lines audit trail file.
// Malformed lines are skipped and counted, not fatal: a crashed session
// may leave a truncated final line and the rest of the trail is still
// worth reading.
func ReadTrail(path string) (*Trail, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("trail file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read trail file %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	trail := &Trail{Path: path}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec audit.Record
		if err := json.Unmarshal(line, &rec); err != nil || rec.Kind == "" {
			trail.Skipped++
			continue
		}
		trail.Records = append(trail.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan trail file %q: %w", path, err)
	}

	trail.Summary = summarize(trail.Records)
	return trail, nil
}

// ByKind returns the trail records of one kind in file order.
func (t *Trail) ByKind(kind audit.Kind) []audit.Record {
	var out []audit.Record
	for _, rec := range t.Records {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

// summarize folds records into a TrailSummary.
func summarize(records []audit.Record) TrailSummary {
	summary := TrailSummary{
		Records: len(records),
		Counts:  make(map[string]int),
	}

	for i := range records {
		rec := records[i]
		summary.Counts[string(rec.Kind)]++
		if summary.SessionID == "" {
			summary.SessionID = rec.SessionID
		}
		if summary.FirstAt == nil || rec.At.Before(*summary.FirstAt) {
			at := rec.At
			summary.FirstAt = &at
		}
		if summary.LastAt == nil || rec.At.After(*summary.LastAt) {
			at := rec.At
			summary.LastAt = &at
		}

		if rec.Kind == audit.KindHealth {
			if tr, ok := healthTransition(rec); ok {
				summary.Transitions = append(summary.Transitions, tr)
				summary.LastHealth = tr.Health
				summary.LastDegradation = tr.Degradation
			}
		}
	}
	return summary
}
