package refine

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a refinement session
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusRunning      Status = "running"
	StatusConverged    Status = "converged"
	StatusExhausted    Status = "exhausted"
	StatusFailed       Status = "failed"
)

// Terminal reports whether the status admits no further iterations
func (s Status) Terminal() bool {
	switch s {
	case StatusConverged, StatusExhausted, StatusFailed:
		return true
	}
	return false
}

// WorstScore is the sentinel recorded for iterations that produced no valid
// measurement. Real scores are efficiencies in [0, 1], so it never competes
// with one.
const WorstScore = -1.0

// ScoreRecord is the immutable outcome of one iteration. Invalid records
// carry WorstScore and a failure description; valid records carry the full
// metric set alongside the scalar score.
type ScoreRecord struct {
	Iteration int            `json:"iteration"`
	Plan      Plan           `json:"plan"`
	Valid     bool           `json:"valid"`
	Score     float64        `json:"score"`
	Metrics   ProfileMetrics `json:"metrics,omitempty"`
	Failure   string         `json:"failure,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Snapshot is a point-in-time, caller-owned copy of session state. Mutating
// a snapshot never affects the session it came from.
type Snapshot struct {
	ID                  string        `json:"id"`
	Status              Status        `json:"status"`
	Iteration           int           `json:"iteration"`
	History             []ScoreRecord `json:"history"`
	Best                *ScoreRecord  `json:"best,omitempty"`
	NonImproving        int           `json:"non_improving"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	StopReason          string        `json:"stop_reason,omitempty"`
	StartedAt           time.Time     `json:"started_at"`
	FinishedAt          time.Time     `json:"finished_at,omitzero"`
}

// Session accumulates per-iteration outcomes and the derived counters the
// stopping policy reads. All methods are safe for concurrent use; the
// controller writes, observers read snapshots.
type Session struct {
	mu sync.RWMutex

	id        string
	status    Status
	iteration int

	history []ScoreRecord
	best    *ScoreRecord

	nonImproving        int
	consecutiveFailures int

	stopReason string
	startedAt  time.Time
	finishedAt time.Time
}

// NewSession returns a session in the Initializing state
func NewSession(id string) *Session {
	return &Session{
		id:     id,
		status: StatusInitializing,
	}
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Status returns the current lifecycle state
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// start moves the session into Running and stamps the start time. It
// reports false when the session is already terminal, so a finished session
// cannot be driven again.
func (s *Session) start(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return false
	}
	s.status = StatusRunning
	s.startedAt = now
	return true
}

// finish moves the session into a terminal state with a stop reason
func (s *Session) finish(status Status, reason string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return
	}
	s.status = status
	s.stopReason = reason
	s.finishedAt = now
}

// Abort ends a session that never ran as Failed with the given reason. A
// session already terminal is left untouched; a running session must be
// stopped through its controller's context instead.
func (s *Session) Abort(reason string) {
	s.finish(StatusFailed, reason, time.Now())
}

// nextIteration advances and returns the 1-based iteration index
func (s *Session) nextIteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iteration++
	return s.iteration
}

// record appends one iteration outcome and updates the derived counters.
//
// A valid record resets the consecutive-failure streak; if its score strictly
// beats the best so far it becomes the new best and resets the non-improving
// streak, otherwise the streak grows. Ties keep the earlier best. An invalid
// record extends the failure streak and leaves the non-improving streak
// untouched, so failed iterations never push a session toward convergence.
func (s *Session) record(rec ScoreRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, rec)

	if !rec.Valid {
		s.consecutiveFailures++
		return
	}

	s.consecutiveFailures = 0
	if s.best == nil || rec.Score > s.best.Score {
		best := rec
		best.Metrics = rec.Metrics.Clone()
		s.best = &best
		s.nonImproving = 0
	} else {
		s.nonImproving++
	}
}

// Snapshot returns a deep copy of the session state
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:                  s.id,
		Status:              s.status,
		Iteration:           s.iteration,
		NonImproving:        s.nonImproving,
		ConsecutiveFailures: s.consecutiveFailures,
		StopReason:          s.stopReason,
		StartedAt:           s.startedAt,
		FinishedAt:          s.finishedAt,
	}
	snap.History = make([]ScoreRecord, len(s.history))
	for i, rec := range s.history {
		snap.History[i] = cloneRecord(rec)
	}
	if s.best != nil {
		best := cloneRecord(*s.best)
		snap.Best = &best
	}
	return snap
}

func cloneRecord(rec ScoreRecord) ScoreRecord {
	out := rec
	out.Metrics = rec.Metrics.Clone()
	out.Plan.TargetOps = append([]string(nil), rec.Plan.TargetOps...)
	if rec.Plan.Params != nil {
		out.Plan.Params = make(map[string]int, len(rec.Plan.Params))
		for k, v := range rec.Plan.Params {
			out.Plan.Params[k] = v
		}
	}
	return out
}
