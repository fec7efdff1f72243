// Package conflict implements cross-modal conflict detection and
// resolution over registry snapshots.
//
// The detector runs on the engine tick and emits conflict records; the
// resolver consumes them and applies one of a fixed set of strategies.
// Conflicts are retained for the session for audit and never deleted.
package conflict

import (
	"fmt"
	"sync"
	"time"

	"github.com/pithecene-io/tandem/types"
)

// Store retains every conflict for the session.
// Thread-safe. Callers receive copies, never live references.
type Store struct {
	mu        sync.Mutex
	conflicts map[string]*types.ModalityConflict
	order     []string
}

// NewStore creates an empty conflict store.
func NewStore() *Store {
	return &Store{conflicts: make(map[string]*types.ModalityConflict)}
}

// Add inserts a newly detected conflict.
func (s *Store) Add(c types.ModalityConflict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := c
	s.conflicts[c.ID] = &stored
	s.order = append(s.order, c.ID)
}

// Get returns a copy of the conflict with the given id.
func (s *Store) Get(id string) (types.ModalityConflict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conflicts[id]
	if !ok {
		return types.ModalityConflict{}, false
	}
	return *c, true
}

// Open returns copies of all unresolved conflicts in detection order.
func (s *Store) Open() []types.ModalityConflict {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.ModalityConflict
	for _, id := range s.order {
		if c := s.conflicts[id]; !c.Resolved {
			out = append(out, *c)
		}
	}
	return out
}

// All returns copies of every conflict in detection order, resolved
// conflicts included.
func (s *Store) All() []types.ModalityConflict {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ModalityConflict, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.conflicts[id])
	}
	return out
}

// MarkResolved flips a conflict to resolved. Returns false if the
// conflict was already resolved (idempotence) and an error if the id is
// unknown.
func (s *Store) MarkResolved(id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conflicts[id]
	if !ok {
		return false, fmt.Errorf("conflict %q not found", id)
	}
	if c.Resolved {
		return false, nil
	}
	c.Resolved = true
	c.ResolvedAt = at
	return true, nil
}
