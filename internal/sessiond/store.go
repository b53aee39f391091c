// Package sessiond hosts refinement sessions behind HTTP and gRPC surfaces:
// an in-memory session store, an async runner with per-session cancellation,
// and the two transport servers.
package sessiond

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/turboinfra/agent-core/internal/metrics"
	"github.com/turboinfra/agent-core/internal/refine"
	"github.com/turboinfra/agent-core/internal/workload"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionTerminal  = errors.New("session is terminal")
	ErrSessionIDMissing = errors.New("session_id is required")
)

// SessionRecord ties a stored session to everything the API surfaces need:
// the source workload, the controller driving it, and its metric timeline.
type SessionRecord struct {
	ID              string
	WorkloadYAML    string
	Model           *workload.Model
	Controller      *refine.Controller
	Timeline        *metrics.Timeline
	CreatedAtUnixMs int64
}

// Snapshot returns the current state of the record's session
func (r *SessionRecord) Snapshot() refine.Snapshot {
	return r.Controller.Session().Snapshot()
}

// SessionStore is the in-memory session registry
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionRecord
	order    []string // creation order for stable listings
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*SessionRecord),
	}
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

func (s *SessionStore) Create(rec *SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		return ErrSessionIDMissing
	}
	if _, exists := s.sessions[rec.ID]; exists {
		return fmt.Errorf("session already exists: %s", rec.ID)
	}

	rec.CreatedAtUnixMs = nowUnixMs()
	s.sessions[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *SessionStore) Get(sessionID string) (*SessionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[sessionID]
	return rec, ok
}

// List returns up to limit records in creation order
func (s *SessionStore) List(limit int) []*SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]*SessionRecord, 0, minInt(limit, len(s.order)))
	for _, id := range s.order {
		out = append(out, s.sessions[id])
		if len(out) >= limit {
			break
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
