package refine

import "sync"

// HardwareGate serializes executor access per hardware unit. Concurrent
// sessions targeting the same unit take turns; sessions on different units
// run in parallel. The zero value is not usable, call NewHardwareGate.
type HardwareGate struct {
	mu    sync.Mutex
	units map[string]*sync.Mutex
}

// NewHardwareGate returns an empty gate registry
func NewHardwareGate() *HardwareGate {
	return &HardwareGate{units: make(map[string]*sync.Mutex)}
}

// Acquire blocks until the named hardware unit is free and returns a
// release function. The release function must be called exactly once.
func (g *HardwareGate) Acquire(unit string) func() {
	g.mu.Lock()
	m, ok := g.units[unit]
	if !ok {
		m = &sync.Mutex{}
		g.units[unit] = m
	}
	g.mu.Unlock()

	m.Lock()
	return m.Unlock
}
