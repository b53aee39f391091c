package sessiond

import (
	"context"
	"fmt"
	"sync"

	"github.com/turboinfra/agent-core/internal/backends/sim"
	"github.com/turboinfra/agent-core/internal/metrics"
	"github.com/turboinfra/agent-core/internal/refine"
	"github.com/turboinfra/agent-core/internal/workload"
	"github.com/turboinfra/agent-core/pkg/config"
	"github.com/turboinfra/agent-core/pkg/logger"
	"github.com/turboinfra/agent-core/pkg/utils"
)

// Backend bundles the three loop collaborators one implementation provides
type Backend interface {
	refine.CandidateGenerator
	refine.Executor
	refine.Profiler
}

// BackendFactory builds the backend for one session's model
type BackendFactory func(model *workload.Model) Backend

// SessionRunner creates sessions from workload descriptions and runs them
// asynchronously with per-session cancellation. One hardware gate is shared
// by every session the runner starts.
type SessionRunner struct {
	store   *SessionStore
	cfg     *config.Config
	gate    *refine.HardwareGate
	backend BackendFactory

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewSessionRunner wires a runner over the store using the agent config.
// A nil factory defaults to the simulated backend.
func NewSessionRunner(store *SessionStore, cfg *config.Config, factory BackendFactory) *SessionRunner {
	if factory == nil {
		factory = func(model *workload.Model) Backend {
			return sim.New(model, sim.Options{})
		}
	}
	return &SessionRunner{
		store:   store,
		cfg:     cfg,
		gate:    refine.NewHardwareGate(),
		backend: factory,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Create validates a workload description, prepares its controller, and
// registers the session in the Initializing state. The session does not run
// until Start.
func (r *SessionRunner) Create(sessionID, workloadYAML string) (*SessionRecord, error) {
	desc, err := config.ParseWorkloadYAML([]byte(workloadYAML))
	if err != nil {
		return nil, err
	}
	model, err := workload.NewModel(desc, r.cfg.Hardware)
	if err != nil {
		return nil, err
	}

	if sessionID == "" {
		sessionID = utils.GenerateSessionID()
	}

	timeline := metrics.NewTimeline()
	ctrl, err := r.buildController(sessionID, model, timeline)
	if err != nil {
		return nil, err
	}

	rec := &SessionRecord{
		ID:           sessionID,
		WorkloadYAML: workloadYAML,
		Model:        model,
		Controller:   ctrl,
		Timeline:     timeline,
	}
	if err := r.store.Create(rec); err != nil {
		return nil, err
	}

	logger.Info("session created", "session_id", sessionID, "workload", model.Name())
	return rec, nil
}

func (r *SessionRunner) buildController(sessionID string, model *workload.Model, timeline *metrics.Timeline) (*refine.Controller, error) {
	loop := r.cfg.Loop
	genTimeout, err := loop.GetGenerationTimeout()
	if err != nil {
		return nil, fmt.Errorf("generation timeout: %w", err)
	}
	execTimeout, err := loop.GetExecutionTimeout()
	if err != nil {
		return nil, fmt.Errorf("execution timeout: %w", err)
	}

	var backoff utils.BackoffStrategy
	if fb := loop.FailureBackoff; fb != nil {
		backoff = utils.BackoffFromConfig(fb.Type, fb.BaseMs, fb.MaxMs)
	}

	policy := refine.StoppingPolicy{
		PatienceWindow:         loop.PatienceWindow,
		MaxIterations:          loop.MaxIterations,
		MaxConsecutiveFailures: loop.MaxConsecutiveFailures,
	}
	if loop.TargetEfficiency != nil {
		policy.TargetEfficiency = *loop.TargetEfficiency
	}

	backend := r.backend(model)
	return refine.NewController(model, refine.Config{
		SessionID:         sessionID,
		Generator:         backend,
		Executor:          backend,
		Profiler:          backend,
		Gate:              r.gate,
		Policy:            policy,
		GenerationTimeout: genTimeout,
		ExecutionTimeout:  execTimeout,
		Backoff:           backoff,
		OnIteration: func(snap refine.Snapshot) {
			last := snap.History[len(snap.History)-1]
			timeline.Record(last.Iteration, "score", last.Score)
			if last.Valid {
				timeline.RecordAll(last.Iteration, last.Metrics)
			}
		},
	})
}

// Start launches a session's loop in the background. Starting a running
// session is a no-op; starting a terminal one fails.
func (r *SessionRunner) Start(sessionID string) (*SessionRecord, error) {
	if sessionID == "" {
		return nil, ErrSessionIDMissing
	}
	rec, ok := r.store.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	// The status check and cancel registration form one critical section:
	// two concurrent Starts must not both launch a loop for the session.
	r.mu.Lock()
	if _, active := r.cancels[sessionID]; active {
		r.mu.Unlock()
		return rec, nil
	}
	status := rec.Controller.Session().Status()
	if status == refine.StatusRunning {
		r.mu.Unlock()
		return rec, nil
	}
	if status.Terminal() {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionTerminal, sessionID)
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancels[sessionID] = cancel
	r.mu.Unlock()

	go func() {
		defer r.cleanup(sessionID)
		if _, err := rec.Controller.Run(ctx); err != nil {
			logger.Warn("session ended with error", "session_id", sessionID, "error", err)
		}
	}()
	return rec, nil
}

// Cancel stops a session. A running session is cancelled at its next
// iteration boundary; a session that never started ends immediately as
// Failed with a cancelled reason.
func (r *SessionRunner) Cancel(sessionID string) (*SessionRecord, error) {
	if sessionID == "" {
		return nil, ErrSessionIDMissing
	}
	rec, ok := r.store.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	r.mu.Lock()
	cancel, running := r.cancels[sessionID]
	r.mu.Unlock()

	if running {
		cancel()
	} else {
		rec.Controller.Session().Abort("cancelled before start")
	}

	logger.Info("session cancel requested", "session_id", sessionID)
	return rec, nil
}

func (r *SessionRunner) cleanup(sessionID string) {
	r.mu.Lock()
	if cancel, ok := r.cancels[sessionID]; ok {
		cancel()
		delete(r.cancels, sessionID)
	}
	r.mu.Unlock()
}
