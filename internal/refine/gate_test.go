package refine

import (
	"sync"
	"testing"
)

func TestHardwareGateSerializesSameUnit(t *testing.T) {
	gate := NewHardwareGate()

	var mu sync.Mutex
	active := 0
	maxActive := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := gate.Acquire("a100")
			defer release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("expected exclusive access to one unit, saw %d concurrent holders", maxActive)
	}
}

func TestHardwareGateIndependentUnits(t *testing.T) {
	gate := NewHardwareGate()

	releaseA := gate.Acquire("a100")
	defer releaseA()

	// Holding one unit must not block another.
	done := make(chan struct{})
	go func() {
		release := gate.Acquire("t4")
		release()
		close(done)
	}()
	<-done
}
