package workload

import (
	"fmt"
	"math"

	"github.com/turboinfra/agent-core/pkg/config"
)

// Objective identifies the metric a session optimizes toward
type Objective string

const (
	// ObjectiveMaximizeGFLOPS maximizes achieved compute throughput
	ObjectiveMaximizeGFLOPS Objective = "achieved_gflops"
	// ObjectiveMinimizeLatency minimizes end-to-end kernel latency
	ObjectiveMinimizeLatency Objective = "latency_ms"
	// ObjectiveMaximizeBandwidth maximizes memory bandwidth utilization
	ObjectiveMaximizeBandwidth Objective = "memory_bandwidth_util"
)

// Operation is one operation in the target pipeline, with fully resolved
// shape dimensions
type Operation struct {
	Name  string  `json:"name"`
	Kind  string  `json:"kind"`
	Shape []int64 `json:"shape"`
	DType string  `json:"dtype"`
}

// Hardware is the resolved hardware target a workload runs on
type Hardware struct {
	ID               string  `json:"id"`
	PeakGFLOPS       float64 `json:"peak_gflops"`
	PeakBandwidthGBs float64 `json:"peak_bandwidth_gbs"`
}

// ValidationError indicates a workload description that cannot become a
// model. A session is never started for a workload that fails validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid workload: %s: %s", e.Field, e.Reason)
}

// Model is the immutable, validated description of an optimization target.
// All accessors return copies; nothing escapes with a mutable reference.
type Model struct {
	name      string
	ops       []Operation
	hardware  Hardware
	objective Objective
	target    float64 // 0 when no target efficiency is set
}

// NewModel validates a workload description against the hardware catalog and
// constructs the immutable model
func NewModel(desc *config.Workload, catalog []config.HardwareTarget) (*Model, error) {
	if desc == nil {
		return nil, &ValidationError{Field: "workload", Reason: "description is nil"}
	}
	if len(desc.Ops) == 0 {
		return nil, &ValidationError{Field: "ops", Reason: "operation sequence is empty"}
	}

	var hw *config.HardwareTarget
	for i := range catalog {
		if catalog[i].ID == desc.Hardware {
			hw = &catalog[i]
			break
		}
	}
	if hw == nil {
		return nil, &ValidationError{Field: "hardware", Reason: fmt.Sprintf("unknown hardware target %q", desc.Hardware)}
	}

	objective := Objective(desc.Objective)
	switch objective {
	case ObjectiveMaximizeGFLOPS, ObjectiveMinimizeLatency, ObjectiveMaximizeBandwidth:
	default:
		return nil, &ValidationError{Field: "objective", Reason: fmt.Sprintf("unknown objective %q", desc.Objective)}
	}

	ops := make([]Operation, len(desc.Ops))
	for i, op := range desc.Ops {
		if len(op.Shape) == 0 {
			return nil, &ValidationError{Field: op.Name, Reason: "shape is empty"}
		}
		for _, dim := range op.Shape {
			if dim <= 0 {
				return nil, &ValidationError{
					Field:  op.Name,
					Reason: fmt.Sprintf("unresolved dimension %d in shape %v", dim, op.Shape),
				}
			}
		}
		shape := make([]int64, len(op.Shape))
		copy(shape, op.Shape)
		ops[i] = Operation{Name: op.Name, Kind: op.Kind, Shape: shape, DType: op.DType}
	}

	target := 0.0
	if desc.TargetEfficiency != nil {
		if *desc.TargetEfficiency <= 0 || *desc.TargetEfficiency > 1 {
			return nil, &ValidationError{
				Field:  "target_efficiency",
				Reason: fmt.Sprintf("must be in (0, 1], got %f", *desc.TargetEfficiency),
			}
		}
		target = *desc.TargetEfficiency
	}

	return &Model{
		name: desc.Name,
		ops:  ops,
		hardware: Hardware{
			ID:               hw.ID,
			PeakGFLOPS:       hw.PeakGFLOPS,
			PeakBandwidthGBs: hw.PeakBandwidthGBs,
		},
		objective: objective,
		target:    target,
	}, nil
}

// Name returns the workload name
func (m *Model) Name() string {
	return m.name
}

// Ops returns a copy of the operation sequence
func (m *Model) Ops() []Operation {
	ops := make([]Operation, len(m.ops))
	for i, op := range m.ops {
		shape := make([]int64, len(op.Shape))
		copy(shape, op.Shape)
		ops[i] = Operation{Name: op.Name, Kind: op.Kind, Shape: shape, DType: op.DType}
	}
	return ops
}

// Hardware returns the resolved hardware target
func (m *Model) Hardware() Hardware {
	return m.hardware
}

// Objective returns the optimization objective
func (m *Model) Objective() Objective {
	return m.objective
}

// TargetEfficiency returns the configured target efficiency threshold, if any
func (m *Model) TargetEfficiency() (float64, bool) {
	if m.target <= 0 {
		return 0, false
	}
	return m.target, true
}

// OpCost estimates the floating-point cost of one operation. The estimate is
// coarse but stable, which is what hot-op ranking and theoretical-minimum
// latency need.
func OpCost(op Operation) float64 {
	elements := 1.0
	for _, dim := range op.Shape {
		elements *= float64(dim)
	}

	switch op.Kind {
	case "matmul":
		// shape [m, k, n] -> 2*m*k*n multiply-accumulates
		if len(op.Shape) == 3 {
			return 2 * float64(op.Shape[0]) * float64(op.Shape[1]) * float64(op.Shape[2])
		}
		return 2 * elements
	case "fft", "ifft":
		// 5*n*log2(n) for a radix-2 transform over the flattened size
		if elements < 2 {
			return elements
		}
		return 5 * elements * math.Log2(elements)
	case "reduce":
		return elements
	case "transpose":
		// data movement only; count element touches
		return elements
	default: // elementwise
		return elements
	}
}

// TotalFLOPs estimates the total floating-point work of the pipeline
func (m *Model) TotalFLOPs() float64 {
	total := 0.0
	for _, op := range m.ops {
		total += OpCost(op)
	}
	return total
}
