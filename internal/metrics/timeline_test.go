package metrics

import (
	"math"
	"sync"
	"testing"
)

func TestTimelineRecordAndSeries(t *testing.T) {
	tl := NewTimeline()
	tl.Record(1, "achieved_gflops", 30)
	tl.Record(2, "achieved_gflops", 50)
	tl.Record(3, "achieved_gflops", 81)

	points := tl.Series("achieved_gflops")
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	for i, p := range points {
		if p.Iteration != i+1 {
			t.Fatalf("point %d has iteration %d", i, p.Iteration)
		}
	}
	if points[2].Value != 81 {
		t.Fatalf("expected last value 81, got %v", points[2].Value)
	}

	if tl.Series("latency_ms") != nil {
		t.Fatalf("unknown metric should return nil series")
	}
}

func TestTimelineRecordAll(t *testing.T) {
	tl := NewTimeline()
	tl.RecordAll(1, map[string]float64{
		"achieved_gflops": 30,
		"latency_ms":      4.2,
		"occupancy":       0.6,
	})

	names := tl.Names()
	want := []string{"achieved_gflops", "latency_ms", "occupancy"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], name)
		}
	}
}

func TestTimelineSummary(t *testing.T) {
	tl := NewTimeline()
	for i, v := range []float64{10, 20, 30, 40} {
		tl.Record(i+1, "latency_ms", v)
	}

	sum := tl.Summary()
	agg, ok := sum["latency_ms"]
	if !ok {
		t.Fatalf("summary missing latency_ms")
	}
	if agg.Count != 4 {
		t.Fatalf("expected count 4, got %d", agg.Count)
	}
	if agg.Min != 10 || agg.Max != 40 {
		t.Fatalf("expected min 10 max 40, got %v and %v", agg.Min, agg.Max)
	}
	if agg.Mean != 25 {
		t.Fatalf("expected mean 25, got %v", agg.Mean)
	}
	if math.Abs(agg.P50-25) > 1e-9 {
		t.Fatalf("expected p50 25, got %v", agg.P50)
	}
	if agg.Last != 40 {
		t.Fatalf("expected last 40, got %v", agg.Last)
	}
}

func TestTimelineSeriesCopy(t *testing.T) {
	tl := NewTimeline()
	tl.Record(1, "occupancy", 0.5)

	points := tl.Series("occupancy")
	points[0].Value = 99

	fresh := tl.Series("occupancy")
	if fresh[0].Value != 0.5 {
		t.Fatalf("series mutation leaked into timeline")
	}
}

func TestTimelineConcurrentAccess(t *testing.T) {
	tl := NewTimeline()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(iter int) {
			defer wg.Done()
			tl.Record(iter, "achieved_gflops", float64(iter))
			tl.Series("achieved_gflops")
			tl.Summary()
		}(i + 1)
	}
	wg.Wait()

	if got := len(tl.Series("achieved_gflops")); got != 10 {
		t.Fatalf("expected 10 points after concurrent writes, got %d", got)
	}
}
