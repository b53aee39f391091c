package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ValidOperationKinds lists the operation kinds the agent understands
var ValidOperationKinds = map[string]bool{
	"matmul":      true,
	"fft":         true,
	"ifft":        true,
	"elementwise": true,
	"reduce":      true,
	"transpose":   true,
}

// ValidDTypes lists the element types the agent understands
var ValidDTypes = map[string]bool{
	"fp64": true,
	"fp32": true,
	"fp16": true,
	"bf16": true,
}

// ValidObjectives lists the optimization objectives the scorer supports
var ValidObjectives = map[string]bool{
	"achieved_gflops":       true,
	"latency_ms":            true,
	"memory_bandwidth_util": true,
}

// ParseConfigYAML parses and validates an agent configuration document
func ParseConfigYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseWorkloadYAML parses and validates a workload description document
func ParseWorkloadYAML(data []byte) (*Workload, error) {
	var w Workload
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workload: %w", err)
	}
	if err := validateWorkloadDescription(&w); err != nil {
		return nil, err
	}
	return &w, nil
}

// MarshalWorkloadYAML serializes a workload description back to YAML
func MarshalWorkloadYAML(w *Workload) ([]byte, error) {
	return yaml.Marshal(w)
}

// validateConfig performs validation on the agent configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	if len(cfg.Hardware) == 0 {
		return fmt.Errorf("at least one hardware target must be defined")
	}
	hardwareIDs := make(map[string]bool)
	for _, hw := range cfg.Hardware {
		if hw.ID == "" {
			return fmt.Errorf("hardware id cannot be empty")
		}
		if hardwareIDs[hw.ID] {
			return fmt.Errorf("duplicate hardware id: %s", hw.ID)
		}
		hardwareIDs[hw.ID] = true
		if hw.PeakGFLOPS <= 0 {
			return fmt.Errorf("hardware %s: peak_gflops must be positive", hw.ID)
		}
		if hw.PeakBandwidthGBs <= 0 {
			return fmt.Errorf("hardware %s: peak_bandwidth_gbs must be positive", hw.ID)
		}
	}

	if cfg.Loop == nil {
		return fmt.Errorf("loop configuration is required")
	}
	if err := validateLoop(cfg.Loop); err != nil {
		return fmt.Errorf("loop validation failed: %w", err)
	}

	return nil
}

// validateLoop validates the refinement loop bounds
func validateLoop(l *Loop) error {
	if l.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", l.MaxIterations)
	}
	if l.PatienceWindow <= 0 {
		return fmt.Errorf("patience_window must be positive, got %d", l.PatienceWindow)
	}
	if l.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("max_consecutive_failures must be positive, got %d", l.MaxConsecutiveFailures)
	}

	genTimeout, err := l.GetGenerationTimeout()
	if err != nil {
		return fmt.Errorf("invalid generation_timeout %q: %w", l.GenerationTimeout, err)
	}
	if genTimeout <= 0 {
		return fmt.Errorf("generation_timeout must be positive, got %s", l.GenerationTimeout)
	}

	execTimeout, err := l.GetExecutionTimeout()
	if err != nil {
		return fmt.Errorf("invalid execution_timeout %q: %w", l.ExecutionTimeout, err)
	}
	if execTimeout <= 0 {
		return fmt.Errorf("execution_timeout must be positive, got %s", l.ExecutionTimeout)
	}

	if l.TargetEfficiency != nil {
		if *l.TargetEfficiency <= 0 || *l.TargetEfficiency > 1 {
			return fmt.Errorf("target_efficiency must be in (0, 1], got %f", *l.TargetEfficiency)
		}
	}

	if l.FailureBackoff != nil {
		validBackoffs := map[string]bool{
			"constant":    true,
			"linear":      true,
			"exponential": true,
		}
		if !validBackoffs[l.FailureBackoff.Type] {
			return fmt.Errorf("invalid failure_backoff type: %s (must be constant, linear, or exponential)", l.FailureBackoff.Type)
		}
		if l.FailureBackoff.BaseMs < 0 {
			return fmt.Errorf("failure_backoff base_ms cannot be negative, got %d", l.FailureBackoff.BaseMs)
		}
	}

	return nil
}

// validateWorkloadDescription validates the shape of a workload description.
// Semantic validation against the hardware catalog happens when the workload
// model is constructed.
func validateWorkloadDescription(w *Workload) error {
	if w.Name == "" {
		return fmt.Errorf("workload name cannot be empty")
	}
	if w.Hardware == "" {
		return fmt.Errorf("workload hardware cannot be empty")
	}
	if !ValidObjectives[w.Objective] {
		return fmt.Errorf("invalid objective: %s", w.Objective)
	}
	if w.TargetEfficiency != nil {
		if *w.TargetEfficiency <= 0 || *w.TargetEfficiency > 1 {
			return fmt.Errorf("target_efficiency must be in (0, 1], got %f", *w.TargetEfficiency)
		}
	}

	if len(w.Ops) == 0 {
		return fmt.Errorf("at least one operation must be defined")
	}
	opNames := make(map[string]bool)
	for i, op := range w.Ops {
		if op.Name == "" {
			return fmt.Errorf("op %d: name cannot be empty", i)
		}
		if opNames[op.Name] {
			return fmt.Errorf("duplicate op name: %s", op.Name)
		}
		opNames[op.Name] = true
		if !ValidOperationKinds[op.Kind] {
			return fmt.Errorf("op %s: invalid kind %s", op.Name, op.Kind)
		}
		if len(op.Shape) == 0 {
			return fmt.Errorf("op %s: shape cannot be empty", op.Name)
		}
		if !ValidDTypes[op.DType] {
			return fmt.Errorf("op %s: invalid dtype %s", op.Name, op.DType)
		}
	}

	return nil
}
