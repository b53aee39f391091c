package refine

import (
	"fmt"

	"github.com/turboinfra/agent-core/internal/workload"
	"github.com/turboinfra/agent-core/pkg/utils"
)

// ObjectiveFunction maps a profile to a normalized efficiency score in
// [0, 1], higher is better regardless of the underlying objective's
// direction. Implementations are pure: the same metrics always produce the
// same score.
type ObjectiveFunction interface {
	Name() string
	Score(metrics ProfileMetrics) (float64, error)
}

// gflopsEfficiency scores achieved throughput against the hardware peak
type gflopsEfficiency struct {
	peakGFLOPS float64
}

func (o gflopsEfficiency) Name() string { return string(workload.ObjectiveMaximizeGFLOPS) }

func (o gflopsEfficiency) Score(metrics ProfileMetrics) (float64, error) {
	achieved, ok := metrics.Lookup(MetricAchievedGFLOPS)
	if !ok {
		return 0, &MissingMetricError{Metric: MetricAchievedGFLOPS}
	}
	return utils.ClampFloat64(achieved/o.peakGFLOPS, 0, 1), nil
}

// latencyEfficiency scores measured latency against the roofline-ideal
// latency of the workload on this hardware, so lower latency maps to a
// higher score.
type latencyEfficiency struct {
	idealMs float64
}

func (o latencyEfficiency) Name() string { return string(workload.ObjectiveMinimizeLatency) }

func (o latencyEfficiency) Score(metrics ProfileMetrics) (float64, error) {
	actual, ok := metrics.Lookup(MetricLatencyMs)
	if !ok {
		return 0, &MissingMetricError{Metric: MetricLatencyMs}
	}
	if actual <= 0 {
		return 0, fmt.Errorf("non-positive latency %v", actual)
	}
	return utils.ClampFloat64(o.idealMs/actual, 0, 1), nil
}

// bandwidthUtil passes through the profiler's bandwidth utilization fraction
type bandwidthUtil struct{}

func (o bandwidthUtil) Name() string { return string(workload.ObjectiveMaximizeBandwidth) }

func (o bandwidthUtil) Score(metrics ProfileMetrics) (float64, error) {
	util, ok := metrics.Lookup(MetricBandwidthUtil)
	if !ok {
		return 0, &MissingMetricError{Metric: MetricBandwidthUtil}
	}
	return utils.ClampFloat64(util, 0, 1), nil
}

// Scorer converts profiles into scalar efficiency scores under the model's
// objective. It holds no mutable state.
type Scorer struct {
	objective ObjectiveFunction
}

// NewScorer builds the objective function for the model's declared objective
func NewScorer(model *workload.Model) (*Scorer, error) {
	hw := model.Hardware()
	switch model.Objective() {
	case workload.ObjectiveMaximizeGFLOPS:
		return &Scorer{objective: gflopsEfficiency{peakGFLOPS: hw.PeakGFLOPS}}, nil
	case workload.ObjectiveMinimizeLatency:
		// Ideal latency assumes the whole workload runs at hardware peak.
		idealMs := model.TotalFLOPs() / (hw.PeakGFLOPS * 1e9) * 1e3
		return &Scorer{objective: latencyEfficiency{idealMs: idealMs}}, nil
	case workload.ObjectiveMaximizeBandwidth:
		return &Scorer{objective: bandwidthUtil{}}, nil
	default:
		return nil, &UnknownObjectiveError{Objective: string(model.Objective())}
	}
}

// Objective returns the name of the active objective function
func (s *Scorer) Objective() string { return s.objective.Name() }

// Score maps a profile to an efficiency in [0, 1]. A missing required
// metric yields a *MissingMetricError; the caller records the iteration as
// unscored rather than aborting the session.
func (s *Scorer) Score(metrics ProfileMetrics) (float64, error) {
	return s.objective.Score(metrics)
}
