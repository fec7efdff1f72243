package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// FSSink appends JSON-lines records to one file per session under a
// base directory.
type FSSink struct {
	mu   sync.Mutex
	path string
	f    *os.File
	enc  *json.Encoder
}

// NewFSSink opens (or creates) the session's trail file under dir.
func NewFSSink(dir, sessionID string) (*FSSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrapStorageError(err, "init", dir)
	}
	path := filepath.Join(dir, sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, wrapStorageError(err, "init", path)
	}
	return &FSSink{path: path, f: f, enc: json.NewEncoder(f)}, nil
}

// Path returns the trail file path.
func (s *FSSink) Path() string { return s.path }

// Append implements Sink.
func (s *FSSink) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wrapStorageError(s.enc.Encode(rec), "append", s.path)
}

// Close implements Sink.
func (s *FSSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wrapStorageError(s.f.Close(), "close", s.path)
}
