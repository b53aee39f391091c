package config

import "time"

// Config represents the main agent configuration
type Config struct {
	LogLevel string           `yaml:"log_level"`
	Hardware []HardwareTarget `yaml:"hardware"`
	Loop     *Loop            `yaml:"loop"`
}

// HardwareTarget describes one accelerator the agent can optimize for
type HardwareTarget struct {
	ID               string  `yaml:"id"`
	PeakGFLOPS       float64 `yaml:"peak_gflops"`
	PeakBandwidthGBs float64 `yaml:"peak_bandwidth_gbs"`
}

// Loop holds the refinement loop bounds. All bounds are required: the loop
// refuses to run open-ended, so there are no baked-in defaults here.
type Loop struct {
	MaxIterations          int             `yaml:"max_iterations"`
	PatienceWindow         int             `yaml:"patience_window"`
	MaxConsecutiveFailures int             `yaml:"max_consecutive_failures"`
	GenerationTimeout      string          `yaml:"generation_timeout"` // e.g. "30s"
	ExecutionTimeout       string          `yaml:"execution_timeout"`  // e.g. "60s"
	TargetEfficiency       *float64        `yaml:"target_efficiency,omitempty"`
	FailureBackoff         *FailureBackoff `yaml:"failure_backoff,omitempty"`
}

// FailureBackoff configures the optional delay between consecutive failed
// iterations
type FailureBackoff struct {
	Type   string `yaml:"type"` // constant, linear, exponential
	BaseMs int    `yaml:"base_ms"`
	MaxMs  int    `yaml:"max_ms"`
}

// Workload describes one optimization target: an ordered operator pipeline,
// the hardware to run it on, and the objective to optimize for
type Workload struct {
	Name             string      `yaml:"name"`
	Hardware         string      `yaml:"hardware"`
	Objective        string      `yaml:"objective"` // achieved_gflops, latency_ms, memory_bandwidth_util
	TargetEfficiency *float64    `yaml:"target_efficiency,omitempty"`
	Ops              []Operation `yaml:"ops"`
}

// Operation is a single named operation in the workload pipeline.
// Shape dimensions must be resolved positive integers; a parser that could
// not resolve a symbolic dimension writes 0, which fails model validation.
type Operation struct {
	Name  string  `yaml:"name"`
	Kind  string  `yaml:"kind"` // matmul, fft, ifft, elementwise, reduce, transpose
	Shape []int64 `yaml:"shape"`
	DType string  `yaml:"dtype"` // fp64, fp32, fp16, bf16
}

// GetGenerationTimeout parses the generation timeout string
func (l *Loop) GetGenerationTimeout() (time.Duration, error) {
	return time.ParseDuration(l.GenerationTimeout)
}

// GetExecutionTimeout parses the execution timeout string
func (l *Loop) GetExecutionTimeout() (time.Duration, error) {
	return time.ParseDuration(l.ExecutionTimeout)
}
