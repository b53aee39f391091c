// Package refine implements the refinement control loop that turns a
// validated workload model into a converged, scored kernel implementation by
// repeatedly planning, generating, executing, and measuring candidates.
//
// The loop never synthesizes code, touches hardware, or parses input itself;
// those capabilities are consumed through the CandidateGenerator, Executor,
// and Profiler contracts below.
package refine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/turboinfra/agent-core/internal/workload"
)

// Strategy names one optimization approach the planner can propose
type Strategy string

const (
	// StrategyBaseline is the untransformed reference implementation,
	// always proposed first
	StrategyBaseline Strategy = "baseline"
	// StrategyFuse fuses adjacent operations into one kernel
	StrategyFuse Strategy = "fuse"
	// StrategyTile blocks an operation's loops for cache/shared-memory reuse
	StrategyTile Strategy = "tile"
	// StrategyVectorize widens an operation's innermost loop
	StrategyVectorize Strategy = "vectorize"
	// StrategyTruncate lowers precision of eligible operations
	StrategyTruncate Strategy = "truncate"
	// StrategyFuseTruncate fuses an adjacent pair and lowers its precision
	StrategyFuseTruncate Strategy = "fuse_truncate"
)

// Plan is one named optimization strategy with structured parameters,
// proposed fresh each iteration. Plans are immutable once proposed.
type Plan struct {
	Strategy  Strategy       `json:"strategy"`
	TargetOps []string       `json:"target_ops,omitempty"`
	Params    map[string]int `json:"params,omitempty"`
}

// Signature returns a deterministic identity for plan deduplication: two
// plans with the same strategy, targets, and parameters are the same plan.
func (p Plan) Signature() string {
	var sb strings.Builder
	sb.WriteString(string(p.Strategy))
	sb.WriteByte('|')
	sb.WriteString(strings.Join(p.TargetOps, ","))
	sb.WriteByte('|')

	keys := make([]string, 0, len(p.Params))
	for k := range p.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s=%d", k, p.Params[k])
	}
	return sb.String()
}

// Candidate is one concrete implementation attempt: an opaque artifact
// reference plus the plan that produced it and its iteration index.
// Candidates are never mutated after creation.
type Candidate struct {
	Artifact  string `json:"artifact"`
	Plan      Plan   `json:"plan"`
	Iteration int    `json:"iteration"`
}

// FailureKind tags the failure mode of an execution
type FailureKind string

const (
	FailureCrash             FailureKind = "crash"
	FailureTimeout           FailureKind = "timeout"
	FailureWrongOutput       FailureKind = "wrong_output"
	FailureResourceExhausted FailureKind = "resource_exhausted"
)

// ExecutionResult reports one hardware run of a candidate. All failure modes
// surface here as Success=false with a failure kind; executors never panic
// the caller.
type ExecutionResult struct {
	Candidate     Candidate          `json:"candidate"`
	Success       bool               `json:"success"`
	Failure       FailureKind        `json:"failure,omitempty"`
	FailureDetail string             `json:"failure_detail,omitempty"`
	Counters      map[string]float64 `json:"counters,omitempty"` // raw timing/resource counters
}

// Metric names the profiler may populate. A ProfileMetrics map can be
// partially populated; consumers tolerate missing keys.
const (
	MetricLatencyMs      = "latency_ms"
	MetricAchievedGFLOPS = "achieved_gflops"
	MetricBandwidthUtil  = "memory_bandwidth_util"
	MetricOccupancy      = "occupancy"
)

// ProfileMetrics holds structured measurements keyed by metric name
type ProfileMetrics map[string]float64

// Lookup returns a metric value and whether it was populated
func (m ProfileMetrics) Lookup(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

// Clone returns a copy of the metrics map
func (m ProfileMetrics) Clone() ProfileMetrics {
	if m == nil {
		return nil
	}
	out := make(ProfileMetrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CandidateGenerator synthesizes a candidate implementation for a plan.
// Calls may be slow and may fail independently of prior or future calls; a
// failure is reported as a *GenerationError.
type CandidateGenerator interface {
	Generate(ctx context.Context, plan Plan, model *workload.Model) (Candidate, error)
}

// Executor runs a candidate on the target hardware. It holds the hardware
// unit exclusively for the duration of one Run call; callers serialize Run
// calls against the same unit. Failure modes are reported in the result, not
// as an error; the error return is reserved for infrastructure faults, which
// the loop treats the same as a failed run.
type Executor interface {
	Run(ctx context.Context, candidate Candidate, timeout time.Duration) (ExecutionResult, error)
}

// Profiler extracts performance metrics from a successful execution. It is
// only called for results with Success=true and may return a partially
// populated map, or ErrProfileUnavailable when no counters could be read.
type Profiler interface {
	Measure(ctx context.Context, result ExecutionResult) (ProfileMetrics, error)
}

// Planner proposes the next optimization plan from the session history. It
// must be a pure function of the model and history: identical inputs yield
// the identical proposal. It returns ErrPlanExhausted when no untried plan
// remains.
type Planner interface {
	ProposeNext(model *workload.Model, session Snapshot) (Plan, error)
}
