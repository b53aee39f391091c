// Package sim provides an in-process backend that stands in for the real
// kernel toolchain and hardware: it synthesizes artifact references, fakes
// runs with plausible roofline numbers, and reports counters a profiler
// would read. Everything is derived from a seeded random source, so a
// session over the same workload and seed replays identically.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/turboinfra/agent-core/internal/refine"
	"github.com/turboinfra/agent-core/internal/workload"
	"github.com/turboinfra/agent-core/pkg/utils"
)

// strategyQuality is the fraction of hardware peak each strategy reaches
// before noise. Truncation wins because the simulated workload is spectral
// and memory bound.
var strategyQuality = map[refine.Strategy]float64{
	refine.StrategyBaseline:     0.25,
	refine.StrategyFuse:         0.45,
	refine.StrategyTile:         0.55,
	refine.StrategyVectorize:    0.50,
	refine.StrategyTruncate:     0.65,
	refine.StrategyFuseTruncate: 0.70,
}

// Options tunes the simulated failure behavior. Zero rates give a backend
// that never fails, which most tests want.
type Options struct {
	Seed                  int64
	GenerationFailureRate float64
	ExecutionFailureRate  float64
	PartialProfileRate    float64
}

// Backend implements the generator, executor, and profiler contracts over a
// simulated toolchain. Safe for use by one controller; the internal lock
// only guards the shared random source and artifact table.
type Backend struct {
	mu    sync.Mutex
	model *workload.Model
	opts  Options
	rng   *utils.RandSource

	generated int
	artifacts map[string]float64 // artifact id -> achieved quality
}

// New builds a backend for one workload model
func New(model *workload.Model, opts Options) *Backend {
	return &Backend{
		model:     model,
		opts:      opts,
		rng:       utils.NewRandSource(opts.Seed),
		artifacts: make(map[string]float64),
	}
}

// Generate fabricates an artifact for the plan and fixes its quality. The
// quality is sampled once here so the later run and profile agree with each
// other.
func (b *Backend) Generate(ctx context.Context, plan refine.Plan, model *workload.Model) (refine.Candidate, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return refine.Candidate{}, err
	}

	b.generated++
	if b.opts.GenerationFailureRate > 0 && b.rng.BernoulliBool(b.opts.GenerationFailureRate) {
		return refine.Candidate{}, &refine.GenerationError{
			Strategy: plan.Strategy,
			Detail:   "simulated codegen failure",
		}
	}

	base, ok := strategyQuality[plan.Strategy]
	if !ok {
		return refine.Candidate{}, &refine.GenerationError{
			Strategy: plan.Strategy,
			Detail:   "strategy not supported by simulated toolchain",
		}
	}
	// Larger tiles and wider vectors get a small edge.
	if tile, ok := plan.Params["tile"]; ok && tile >= 64 {
		base += 0.03
	}
	if width, ok := plan.Params["width"]; ok && width >= 8 {
		base += 0.02
	}

	quality := utils.ClampFloat64(base+b.rng.NormFloat64(0, 0.02), 0.01, 0.99)
	artifact := utils.GenerateArtifactID(string(plan.Strategy), b.generated)
	b.artifacts[artifact] = quality

	return refine.Candidate{Artifact: artifact, Plan: plan}, nil
}

// Run fakes a hardware execution of the candidate and reports roofline
// counters for it. Unknown artifacts crash, matching a toolchain that lost
// the build product.
func (b *Backend) Run(ctx context.Context, candidate refine.Candidate, timeout time.Duration) (refine.ExecutionResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return refine.ExecutionResult{}, err
	}

	quality, ok := b.artifacts[candidate.Artifact]
	if !ok {
		return refine.ExecutionResult{
			Candidate:     candidate,
			Failure:       refine.FailureCrash,
			FailureDetail: fmt.Sprintf("unknown artifact %q", candidate.Artifact),
		}, nil
	}

	if b.opts.ExecutionFailureRate > 0 && b.rng.BernoulliBool(b.opts.ExecutionFailureRate) {
		kind := refine.FailureCrash
		if b.rng.BernoulliBool(0.5) {
			kind = refine.FailureWrongOutput
		}
		return refine.ExecutionResult{
			Candidate:     candidate,
			Failure:       kind,
			FailureDetail: "simulated run failure",
		}, nil
	}

	hw := b.model.Hardware()
	flops := b.model.TotalFLOPs()
	elapsedMs := flops / (quality * hw.PeakGFLOPS * 1e9) * 1e3

	return refine.ExecutionResult{
		Candidate: candidate,
		Success:   true,
		Counters: map[string]float64{
			"elapsed_ms":  elapsedMs,
			"flops":       flops,
			"bytes_moved": b.bytesMoved(),
		},
	}, nil
}

// Measure derives structured metrics from the run's raw counters. A
// partial-profile rate above zero occasionally drops the throughput metric,
// simulating counters the profiler failed to read.
func (b *Backend) Measure(ctx context.Context, result refine.ExecutionResult) (refine.ProfileMetrics, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	elapsedMs, ok := result.Counters["elapsed_ms"]
	if !ok || elapsedMs <= 0 {
		return nil, refine.ErrProfileUnavailable
	}
	flops := result.Counters["flops"]
	bytes := result.Counters["bytes_moved"]

	hw := b.model.Hardware()
	gflops := flops / (elapsedMs / 1e3) / 1e9
	bwUtil := 0.0
	if hw.PeakBandwidthGBs > 0 {
		bwUtil = utils.ClampFloat64(bytes/(elapsedMs/1e3)/1e9/hw.PeakBandwidthGBs, 0, 1)
	}

	metrics := refine.ProfileMetrics{
		refine.MetricLatencyMs:      elapsedMs,
		refine.MetricAchievedGFLOPS: gflops,
		refine.MetricBandwidthUtil:  bwUtil,
		refine.MetricOccupancy:      utils.ClampFloat64(0.4+gflops/hw.PeakGFLOPS*0.6, 0, 1),
	}

	if b.opts.PartialProfileRate > 0 && b.rng.BernoulliBool(b.opts.PartialProfileRate) {
		delete(metrics, refine.MetricAchievedGFLOPS)
	}
	return metrics, nil
}

// bytesMoved estimates memory traffic as one read and one write per element
func (b *Backend) bytesMoved() float64 {
	total := 0.0
	for _, op := range b.model.Ops() {
		elements := 1.0
		for _, dim := range op.Shape {
			elements *= float64(dim)
		}
		total += elements * float64(dtypeSize(op.DType)) * 2
	}
	return total
}

func dtypeSize(dtype string) int {
	switch dtype {
	case "fp64":
		return 8
	case "fp32":
		return 4
	default: // fp16, bf16
		return 2
	}
}
