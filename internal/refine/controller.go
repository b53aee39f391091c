package refine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/turboinfra/agent-core/internal/workload"
	"github.com/turboinfra/agent-core/pkg/logger"
	"github.com/turboinfra/agent-core/pkg/utils"
)

// Config wires a controller's collaborators and loop bounds. Generator,
// Executor, Profiler, and the loop bounds are required; Planner, Gate, and
// Backoff have working defaults.
type Config struct {
	SessionID string

	Generator CandidateGenerator
	Executor  Executor
	Profiler  Profiler
	Planner   Planner

	// Gate serializes hardware access across sessions. A nil gate means
	// this controller has the hardware to itself.
	Gate *HardwareGate

	Policy StoppingPolicy

	GenerationTimeout time.Duration
	ExecutionTimeout  time.Duration

	// Backoff delays the next iteration after a failed one. Nil disables
	// the delay.
	Backoff utils.BackoffStrategy

	// OnIteration, when set, receives a snapshot after every recorded
	// iteration. Called synchronously from the loop goroutine.
	OnIteration func(Snapshot)
}

// Validate checks that the configuration can drive a session
func (c Config) Validate() error {
	if c.Generator == nil {
		return fmt.Errorf("generator is required")
	}
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if c.Profiler == nil {
		return fmt.Errorf("profiler is required")
	}
	if c.Policy.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", c.Policy.MaxIterations)
	}
	if c.Policy.PatienceWindow <= 0 {
		return fmt.Errorf("patience window must be positive, got %d", c.Policy.PatienceWindow)
	}
	if c.Policy.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("max consecutive failures must be positive, got %d", c.Policy.MaxConsecutiveFailures)
	}
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("generation timeout must be positive, got %v", c.GenerationTimeout)
	}
	if c.ExecutionTimeout <= 0 {
		return fmt.Errorf("execution timeout must be positive, got %v", c.ExecutionTimeout)
	}
	return nil
}

// Controller drives one refinement session over a workload model: propose a
// plan, generate a candidate, run it, measure it, score it, then let the
// stopping policy decide whether to go again. Every iteration leaves exactly
// one ScoreRecord in the session, valid or not.
type Controller struct {
	cfg     Config
	model   *workload.Model
	scorer  *Scorer
	session *Session
}

// NewController validates the configuration and prepares a session in the
// Initializing state. The session id is generated when the config leaves it
// empty.
func NewController(model *workload.Model, cfg Config) (*Controller, error) {
	if model == nil {
		return nil, fmt.Errorf("workload model is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid controller config: %w", err)
	}
	if cfg.Planner == nil {
		cfg.Planner = NewCatalogPlanner()
	}
	if cfg.SessionID == "" {
		cfg.SessionID = utils.GenerateSessionID()
	}
	if target, ok := model.TargetEfficiency(); ok && cfg.Policy.TargetEfficiency == 0 {
		cfg.Policy.TargetEfficiency = target
	}

	scorer, err := NewScorer(model)
	if err != nil {
		return nil, err
	}

	return &Controller{
		cfg:     cfg,
		model:   model,
		scorer:  scorer,
		session: NewSession(cfg.SessionID),
	}, nil
}

// Session exposes the controller's session for observers
func (c *Controller) Session() *Session { return c.session }

// Run executes the refinement loop until the stopping policy or the context
// ends it. The returned snapshot is always the final session state; the
// error is non-nil only when the session failed or was cancelled, never for
// a normal Converged or Exhausted finish. Calling Run on a session that
// already reached a terminal state returns the existing snapshot untouched.
func (c *Controller) Run(ctx context.Context) (Snapshot, error) {
	if !c.session.start(time.Now()) {
		return c.session.Snapshot(), nil
	}
	logger.Info("refinement session started",
		"session_id", c.session.ID(),
		"workload", c.model.Name(),
		"objective", c.scorer.Objective(),
		"hardware", c.model.Hardware().ID,
	)

	for {
		// Cancellation is observed at iteration boundaries only; an
		// iteration in flight runs to completion.
		if err := ctx.Err(); err != nil {
			return c.finish(StatusFailed, "cancelled", err)
		}

		snap := c.session.Snapshot()
		plan, err := c.cfg.Planner.ProposeNext(c.model, snap)
		if errors.Is(err, ErrPlanExhausted) {
			return c.finish(StatusExhausted, "plan space exhausted", nil)
		}
		if err != nil {
			return c.finish(StatusFailed, fmt.Sprintf("planner error: %v", err),
				&SessionError{Reason: fmt.Sprintf("planner error: %v", err)})
		}

		iter := c.session.nextIteration()
		rec, aborted := c.attempt(ctx, iter, plan)
		if aborted {
			return c.finish(StatusFailed, "cancelled", ctx.Err())
		}
		c.session.record(rec)

		if rec.Valid {
			logger.Info("iteration scored",
				"session_id", c.session.ID(),
				"iteration", iter,
				"strategy", plan.Strategy,
				"score", rec.Score,
			)
		} else {
			logger.Warn("iteration failed",
				"session_id", c.session.ID(),
				"iteration", iter,
				"strategy", plan.Strategy,
				"failure", rec.Failure,
			)
		}

		after := c.session.Snapshot()
		if c.cfg.OnIteration != nil {
			c.cfg.OnIteration(after)
		}

		if dec := c.cfg.Policy.Evaluate(after); dec.Stop {
			var err error
			if dec.Status == StatusFailed {
				err = &SessionError{Reason: dec.Reason}
			}
			return c.finish(dec.Status, dec.Reason, err)
		}

		if !rec.Valid && c.cfg.Backoff != nil {
			delay := c.cfg.Backoff.NextDelay(after.ConsecutiveFailures)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
		}
	}
}

// finish moves the session to its terminal state and returns the final
// snapshot
func (c *Controller) finish(status Status, reason string, err error) (Snapshot, error) {
	c.session.finish(status, reason, time.Now())
	snap := c.session.Snapshot()
	logger.Info("refinement session finished",
		"session_id", c.session.ID(),
		"status", status,
		"reason", reason,
		"iterations", snap.Iteration,
	)
	return snap, err
}

// attempt runs one full iteration pipeline for a plan. Every failure along
// the pipeline produces an invalid record rather than an error, keeping the
// iteration isolated from its neighbors. The aborted flag is set when a
// stage was cut short by session cancellation, in which case no record is
// produced for the aborted call.
func (c *Controller) attempt(ctx context.Context, iter int, plan Plan) (ScoreRecord, bool) {
	rec := ScoreRecord{
		Iteration: iter,
		Plan:      plan,
		Score:     WorstScore,
		Timestamp: time.Now(),
	}

	candidate, err := c.generate(ctx, plan, iter)
	if err != nil {
		if ctx.Err() != nil {
			return ScoreRecord{}, true
		}
		rec.Failure = err.Error()
		return rec, false
	}

	result, err := c.execute(ctx, candidate)
	if err != nil {
		if ctx.Err() != nil {
			return ScoreRecord{}, true
		}
		rec.Failure = err.Error()
		return rec, false
	}
	if !result.Success {
		rec.Failure = fmt.Sprintf("execution %s: %s", result.Failure, result.FailureDetail)
		return rec, false
	}

	metrics, err := c.measure(ctx, result)
	if err != nil {
		if ctx.Err() != nil {
			return ScoreRecord{}, true
		}
		rec.Failure = err.Error()
		return rec, false
	}

	score, err := c.scorer.Score(metrics)
	if err != nil {
		rec.Metrics = metrics
		rec.Failure = err.Error()
		return rec, false
	}

	rec.Valid = true
	rec.Score = score
	rec.Metrics = metrics
	return rec, false
}

// generate calls the candidate generator under the generation timeout. A
// generator that overruns the timeout is abandoned; its eventual result is
// discarded.
func (c *Controller) generate(ctx context.Context, plan Plan, iter int) (Candidate, error) {
	gctx, cancel := context.WithTimeout(ctx, c.cfg.GenerationTimeout)
	defer cancel()

	type outcome struct {
		candidate Candidate
		err       error
	}
	done := make(chan outcome, 1)
	go func() {
		candidate, err := c.cfg.Generator.Generate(gctx, plan, c.model)
		candidate.Iteration = iter
		done <- outcome{candidate, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Candidate{}, fmt.Errorf("candidate generation: %w", out.err)
		}
		return out.candidate, nil
	case <-gctx.Done():
		return Candidate{}, fmt.Errorf("candidate generation: %w", gctx.Err())
	}
}

// execute runs a candidate under the execution timeout, holding the
// hardware gate for the duration of the run. The gate is acquired before
// the timeout clock starts, so time spent queued behind another session
// does not count against the run. The gate is released by the run goroutine
// itself, so an abandoned run keeps its unit reserved until the executor
// actually returns.
func (c *Controller) execute(ctx context.Context, candidate Candidate) (ExecutionResult, error) {
	var release func()
	if c.cfg.Gate != nil {
		release = c.cfg.Gate.Acquire(c.model.Hardware().ID)
	}

	ectx, cancel := context.WithTimeout(ctx, c.cfg.ExecutionTimeout)
	defer cancel()

	type outcome struct {
		result ExecutionResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		if release != nil {
			defer release()
		}
		result, err := c.cfg.Executor.Run(ectx, candidate, c.cfg.ExecutionTimeout)
		done <- outcome{result, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return ExecutionResult{}, fmt.Errorf("execution: %w", out.err)
		}
		return out.result, nil
	case <-ectx.Done():
		if ctx.Err() != nil {
			return ExecutionResult{}, fmt.Errorf("execution: %w", ctx.Err())
		}
		return ExecutionResult{
			Candidate:     candidate,
			Failure:       FailureTimeout,
			FailureDetail: fmt.Sprintf("run exceeded %v", c.cfg.ExecutionTimeout),
		}, nil
	}
}

// measure extracts a profile from a successful run. Profiling shares the
// execution timeout since both read the same hardware counters.
func (c *Controller) measure(ctx context.Context, result ExecutionResult) (ProfileMetrics, error) {
	mctx, cancel := context.WithTimeout(ctx, c.cfg.ExecutionTimeout)
	defer cancel()

	type outcome struct {
		metrics ProfileMetrics
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		metrics, err := c.cfg.Profiler.Measure(mctx, result)
		done <- outcome{metrics, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("profiling: %w", out.err)
		}
		return out.metrics, nil
	case <-mctx.Done():
		return nil, fmt.Errorf("profiling: %w", mctx.Err())
	}
}
