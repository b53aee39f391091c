// Package metrics accumulates per-iteration measurement series for a
// refinement session, so observers can chart how a metric evolved across
// candidates without replaying the session history.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/turboinfra/agent-core/pkg/utils"
)

// Point is one metric observation tagged with its iteration
type Point struct {
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
}

// Aggregation summarizes one metric series
type Aggregation struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	Last   float64 `json:"last"`
}

// Timeline collects metric points across a session's iterations. Safe for
// concurrent use: the controller's progress hook writes while API handlers
// read.
type Timeline struct {
	mu     sync.RWMutex
	series map[string][]Point
}

// NewTimeline returns an empty timeline
func NewTimeline() *Timeline {
	return &Timeline{series: make(map[string][]Point)}
}

// Record appends one observation for a metric
func (t *Timeline) Record(iteration int, name string, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.series[name] = append(t.series[name], Point{
		Iteration: iteration,
		Timestamp: time.Now(),
		Name:      name,
		Value:     value,
	})
}

// RecordAll appends one observation per entry in values, all tagged with
// the same iteration
func (t *Timeline) RecordAll(iteration int, values map[string]float64) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, value := range values {
		t.series[name] = append(t.series[name], Point{
			Iteration: iteration,
			Timestamp: now,
			Name:      name,
			Value:     value,
		})
	}
}

// Series returns a copy of all points recorded for a metric, in recording
// order
func (t *Timeline) Series(name string) []Point {
	t.mu.RLock()
	defer t.mu.RUnlock()
	points := t.series[name]
	if len(points) == 0 {
		return nil
	}
	out := make([]Point, len(points))
	copy(out, points)
	return out
}

// Names returns the sorted names of all recorded metrics
func (t *Timeline) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.series))
	for name := range t.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary computes aggregations for every recorded metric
func (t *Timeline) Summary() map[string]Aggregation {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Aggregation, len(t.series))
	for name, points := range t.series {
		if len(points) == 0 {
			continue
		}
		values := make([]float64, len(points))
		for i, p := range points {
			values[i] = p.Value
		}
		out[name] = aggregate(values)
	}
	return out
}

func aggregate(values []float64) Aggregation {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return Aggregation{
		Count:  len(values),
		Min:    min,
		Max:    max,
		Mean:   utils.Mean(values),
		StdDev: utils.StdDev(values),
		P50:    utils.Percentile(values, 50),
		P95:    utils.Percentile(values, 95),
		Last:   values[len(values)-1],
	}
}
