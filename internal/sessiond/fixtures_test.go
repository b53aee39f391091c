package sessiond

import (
	"testing"
	"time"

	"github.com/turboinfra/agent-core/internal/backends/sim"
	"github.com/turboinfra/agent-core/internal/refine"
	"github.com/turboinfra/agent-core/internal/workload"
	"github.com/turboinfra/agent-core/pkg/config"
)

const testWorkloadYAML = `name: fno-block
hardware: a100
objective: achieved_gflops
ops:
  - name: fft0
    kind: fft
    shape: [1024, 64]
    dtype: fp32
  - name: spectral_mm
    kind: matmul
    shape: [1024, 64, 64]
    dtype: fp32
  - name: ifft0
    kind: ifft
    shape: [1024, 64]
    dtype: fp32
`

func testConfig() *config.Config {
	return &config.Config{
		LogLevel: "info",
		Hardware: []config.HardwareTarget{
			{ID: "a100", PeakGFLOPS: 100, PeakBandwidthGBs: 1555},
		},
		Loop: &config.Loop{
			MaxIterations:          8,
			PatienceWindow:         3,
			MaxConsecutiveFailures: 3,
			GenerationTimeout:      "1s",
			ExecutionTimeout:       "1s",
		},
	}
}

func testRunner() (*SessionStore, *SessionRunner) {
	store := NewSessionStore()
	runner := NewSessionRunner(store, testConfig(), func(model *workload.Model) Backend {
		return sim.New(model, sim.Options{Seed: 42})
	})
	return store, runner
}

// newTestRecord builds a record without going through the runner, for store
// tests that only need identity
func newTestRecord(t *testing.T, id string) *SessionRecord {
	t.Helper()
	_, runner := testRunner()
	rec, err := runner.Create("seed-"+id, testWorkloadYAML)
	if err != nil {
		t.Fatalf("failed to build test record: %v", err)
	}
	return &SessionRecord{
		ID:           id,
		WorkloadYAML: rec.WorkloadYAML,
		Model:        rec.Model,
		Controller:   rec.Controller,
		Timeline:     rec.Timeline,
	}
}

// waitForTerminal polls until the session reaches a terminal state
func waitForTerminal(t *testing.T, rec *SessionRecord) refine.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := rec.Snapshot()
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s did not reach a terminal state", rec.ID)
	return refine.Snapshot{}
}
