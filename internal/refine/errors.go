package refine

import (
	"errors"
	"fmt"
)

// ErrPlanExhausted is returned by a Planner once every reachable plan has
// been proposed.
var ErrPlanExhausted = errors.New("plan space exhausted")

// ErrProfileUnavailable is returned by a Profiler when a successful run
// yields no usable counters.
var ErrProfileUnavailable = errors.New("profile unavailable")

// GenerationError reports a failed candidate synthesis attempt
type GenerationError struct {
	Strategy Strategy
	Detail   string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for strategy %q: %s", e.Strategy, e.Detail)
}

// MissingMetricError reports that the metric required by the session
// objective was absent from a profile.
type MissingMetricError struct {
	Metric string
}

func (e *MissingMetricError) Error() string {
	return fmt.Sprintf("required metric %q missing from profile", e.Metric)
}

// UnknownObjectiveError reports an objective no scorer implements
type UnknownObjectiveError struct {
	Objective string
}

func (e *UnknownObjectiveError) Error() string {
	return fmt.Sprintf("unknown objective %q", e.Objective)
}

// SessionError reports a session that ended in the Failed state
type SessionError struct {
	Reason string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session failed: %s", e.Reason)
}
