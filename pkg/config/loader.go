package config

import (
	"fmt"
	"os"
)

// LoadConfig loads and parses an agent configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadWorkload loads and parses a workload description file
func LoadWorkload(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workload file %s: %w", path, err)
	}
	w, err := ParseWorkloadYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workload file %s: %w", path, err)
	}
	return w, nil
}
