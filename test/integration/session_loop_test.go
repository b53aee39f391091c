//go:build integration
// +build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/turboinfra/agent-core/internal/backends/sim"
	"github.com/turboinfra/agent-core/internal/sessiond"
	"github.com/turboinfra/agent-core/internal/workload"
	"github.com/turboinfra/agent-core/pkg/config"
)

const workloadYAML = `name: fno-block
hardware: a100
objective: achieved_gflops
target_efficiency: 0.6
ops:
  - name: fft0
    kind: fft
    shape: [1024, 64]
    dtype: fp32
  - name: spectral_mm
    kind: matmul
    shape: [1024, 64, 64]
    dtype: fp32
  - name: gelu0
    kind: elementwise
    shape: [1024, 64]
    dtype: fp32
  - name: ifft0
    kind: ifft
    shape: [1024, 64]
    dtype: fp32
`

func newTestStack() *httptest.Server {
	cfg := &config.Config{
		LogLevel: "warn",
		Hardware: []config.HardwareTarget{
			{ID: "a100", PeakGFLOPS: 100, PeakBandwidthGBs: 1555},
		},
		Loop: &config.Loop{
			MaxIterations:          12,
			PatienceWindow:         4,
			MaxConsecutiveFailures: 4,
			GenerationTimeout:      "2s",
			ExecutionTimeout:       "2s",
		},
	}

	store := sessiond.NewSessionStore()
	runner := sessiond.NewSessionRunner(store, cfg, func(model *workload.Model) sessiond.Backend {
		return sim.New(model, sim.Options{Seed: 1234})
	})
	return httptest.NewServer(sessiond.NewHTTPServer(store, runner).Handler())
}

func post(t *testing.T, url string, body any) map[string]any {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		t.Fatalf("POST %s returned %d", url, resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func get(t *testing.T, url string) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

// TestE2E_SessionLoopOverHTTP drives a full refinement session through the
// HTTP surface: create, start, poll to terminal, then inspect history and
// metrics.
func TestE2E_SessionLoopOverHTTP(t *testing.T) {
	srv := newTestStack()
	defer srv.Close()

	created := post(t, srv.URL+"/v1/sessions", map[string]any{
		"session_id":    "e2e-1",
		"workload_yaml": workloadYAML,
	})
	session := created["session"].(map[string]any)
	if session["status"] != "initializing" {
		t.Fatalf("expected initializing, got %v", session["status"])
	}

	post(t, srv.URL+"/v1/sessions/e2e-1:start", nil)

	var final map[string]any
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		body := get(t, srv.URL+"/v1/sessions/e2e-1")
		final = body["session"].(map[string]any)
		status := final["status"].(string)
		if status == "converged" || status == "exhausted" || status == "failed" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	status := final["status"].(string)
	if status != "converged" && status != "exhausted" {
		t.Fatalf("unexpected terminal state %s (reason %v)", status, final["stop_reason"])
	}
	if final["best"] == nil {
		t.Fatalf("expected a best candidate")
	}
	best := final["best"].(map[string]any)
	if best["score"].(float64) <= 0 {
		t.Fatalf("best score should be positive, got %v", best["score"])
	}

	hist := get(t, srv.URL+"/v1/sessions/e2e-1/history")
	history := hist["history"].([]any)
	if len(history) == 0 {
		t.Fatalf("expected non-empty history")
	}
	iterations := int(final["iteration"].(float64))
	if len(history) != iterations {
		t.Fatalf("history has %d records for %d iterations", len(history), iterations)
	}

	met := get(t, srv.URL+"/v1/sessions/e2e-1/metrics")
	if met["summary"] == nil {
		t.Fatalf("expected metrics summary")
	}
	names := met["metrics"].([]any)
	found := false
	for _, n := range names {
		if n == "score" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected score series in timeline, got %v", names)
	}
}
