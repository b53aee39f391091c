package refine

import (
	"testing"

	"github.com/turboinfra/agent-core/internal/workload"
	"github.com/turboinfra/agent-core/pkg/config"
)

var testCatalog = []config.HardwareTarget{
	{ID: "a100", PeakGFLOPS: 100, PeakBandwidthGBs: 1555},
	{ID: "t4", PeakGFLOPS: 65, PeakBandwidthGBs: 300},
}

// testModel builds a small spectral pipeline on the 100 GFLOPS test target,
// so achieved_gflops values map directly to efficiency fractions.
func testModel(t *testing.T, objective string, target *float64) *workload.Model {
	t.Helper()
	desc := &config.Workload{
		Name:             "fno-block",
		Hardware:         "a100",
		Objective:        objective,
		TargetEfficiency: target,
		Ops: []config.Operation{
			{Name: "fft0", Kind: "fft", Shape: []int64{1024, 64}, DType: "fp32"},
			{Name: "spectral_mm", Kind: "matmul", Shape: []int64{1024, 64, 64}, DType: "fp32"},
			{Name: "gelu0", Kind: "elementwise", Shape: []int64{1024, 64}, DType: "fp32"},
			{Name: "ifft0", Kind: "ifft", Shape: []int64{1024, 64}, DType: "fp32"},
		},
	}
	model, err := workload.NewModel(desc, testCatalog)
	if err != nil {
		t.Fatalf("failed to build test model: %v", err)
	}
	return model
}

func floatPtr(v float64) *float64 { return &v }
