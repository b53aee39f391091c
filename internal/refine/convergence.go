package refine

import "fmt"

// StoppingPolicy decides after each iteration whether the session is done
// and which terminal state it lands in. The policy is evaluated exactly once
// per iteration, at the iteration boundary.
type StoppingPolicy struct {
	// TargetEfficiency ends the session as Converged once the best score
	// reaches it. Zero means no threshold is set.
	TargetEfficiency float64
	// PatienceWindow ends the session as Converged after this many
	// consecutive valid iterations without a new best.
	PatienceWindow int
	// MaxIterations ends the session as Exhausted once this many
	// iterations have run.
	MaxIterations int
	// MaxConsecutiveFailures ends the session as Failed after this many
	// invalid iterations in a row.
	MaxConsecutiveFailures int
}

// Decision is the outcome of one policy evaluation
type Decision struct {
	Stop   bool
	Status Status
	Reason string
}

// Evaluate inspects the session counters and returns the stop decision.
// A threshold hit wins over patience, and both win over exhaustion, so a
// final iteration that reaches the target converges rather than exhausting.
func (p StoppingPolicy) Evaluate(snap Snapshot) Decision {
	if p.TargetEfficiency > 0 && snap.Best != nil && snap.Best.Score >= p.TargetEfficiency {
		return Decision{
			Stop:   true,
			Status: StatusConverged,
			Reason: fmt.Sprintf("target efficiency %.3f reached with score %.3f", p.TargetEfficiency, snap.Best.Score),
		}
	}
	if p.PatienceWindow > 0 && snap.NonImproving >= p.PatienceWindow {
		return Decision{
			Stop:   true,
			Status: StatusConverged,
			Reason: fmt.Sprintf("no improvement for %d consecutive iterations", snap.NonImproving),
		}
	}
	if p.MaxConsecutiveFailures > 0 && snap.ConsecutiveFailures >= p.MaxConsecutiveFailures {
		return Decision{
			Stop:   true,
			Status: StatusFailed,
			Reason: fmt.Sprintf("%d consecutive iteration failures", snap.ConsecutiveFailures),
		}
	}
	if p.MaxIterations > 0 && snap.Iteration >= p.MaxIterations {
		return Decision{
			Stop:   true,
			Status: StatusExhausted,
			Reason: fmt.Sprintf("iteration budget of %d exhausted", p.MaxIterations),
		}
	}
	return Decision{}
}
