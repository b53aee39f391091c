package refine

import "testing"

func TestStoppingPolicyEvaluate(t *testing.T) {
	policy := StoppingPolicy{
		TargetEfficiency:       0.8,
		PatienceWindow:         3,
		MaxIterations:          10,
		MaxConsecutiveFailures: 5,
	}

	best := func(score float64) *ScoreRecord {
		return &ScoreRecord{Iteration: 1, Valid: true, Score: score}
	}

	tests := []struct {
		name       string
		snap       Snapshot
		wantStop   bool
		wantStatus Status
	}{
		{
			name:     "keep going",
			snap:     Snapshot{Iteration: 4, Best: best(0.5), NonImproving: 1},
			wantStop: false,
		},
		{
			name:       "target reached",
			snap:       Snapshot{Iteration: 3, Best: best(0.81)},
			wantStop:   true,
			wantStatus: StatusConverged,
		},
		{
			name:       "target reached exactly",
			snap:       Snapshot{Iteration: 3, Best: best(0.8)},
			wantStop:   true,
			wantStatus: StatusConverged,
		},
		{
			name:       "patience exhausted",
			snap:       Snapshot{Iteration: 6, Best: best(0.5), NonImproving: 3},
			wantStop:   true,
			wantStatus: StatusConverged,
		},
		{
			name:       "iteration budget spent",
			snap:       Snapshot{Iteration: 10, Best: best(0.5), NonImproving: 1},
			wantStop:   true,
			wantStatus: StatusExhausted,
		},
		{
			name:       "failure streak",
			snap:       Snapshot{Iteration: 7, ConsecutiveFailures: 5},
			wantStop:   true,
			wantStatus: StatusFailed,
		},
		{
			name:       "target beats exhaustion on final iteration",
			snap:       Snapshot{Iteration: 10, Best: best(0.9)},
			wantStop:   true,
			wantStatus: StatusConverged,
		},
		{
			name:       "patience beats exhaustion on final iteration",
			snap:       Snapshot{Iteration: 10, Best: best(0.5), NonImproving: 3},
			wantStop:   true,
			wantStatus: StatusConverged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := policy.Evaluate(tt.snap)
			if dec.Stop != tt.wantStop {
				t.Fatalf("Stop = %v, want %v", dec.Stop, tt.wantStop)
			}
			if dec.Stop && dec.Status != tt.wantStatus {
				t.Fatalf("Status = %s, want %s", dec.Status, tt.wantStatus)
			}
			if dec.Stop && dec.Reason == "" {
				t.Fatalf("stop decision missing reason")
			}
		})
	}
}

func TestStoppingPolicyNoThreshold(t *testing.T) {
	policy := StoppingPolicy{
		PatienceWindow:         3,
		MaxIterations:          10,
		MaxConsecutiveFailures: 5,
	}
	snap := Snapshot{
		Iteration: 2,
		Best:      &ScoreRecord{Valid: true, Score: 0.99},
	}
	if dec := policy.Evaluate(snap); dec.Stop {
		t.Fatalf("no threshold configured, should not stop: %+v", dec)
	}
}
