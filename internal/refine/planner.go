package refine

import (
	"sort"

	"github.com/turboinfra/agent-core/internal/workload"
)

// CatalogPlanner proposes plans from a deterministic catalog derived from
// the workload's operation mix. It holds no state between calls: the set of
// already-tried plans and the score trend are recomputed from the session
// history, so a proposal is a pure function of model and history. Plans
// that produced a failed iteration count as tried and are never proposed
// again.
type CatalogPlanner struct{}

// NewCatalogPlanner returns the default planner
func NewCatalogPlanner() *CatalogPlanner { return &CatalogPlanner{} }

// ProposeNext returns the next untried catalog plan, steered by the score
// trend: while scores are improving it stays within the strategy family of
// the most recent attempt, otherwise it jumps to the first untried plan of
// a different family. Either way a plan is proposed at most once per
// session, and ErrPlanExhausted is returned once every plan has been
// attempted.
func (p *CatalogPlanner) ProposeNext(model *workload.Model, session Snapshot) (Plan, error) {
	tried := make(map[string]bool, len(session.History))
	for _, rec := range session.History {
		tried[rec.Plan.Signature()] = true
	}

	var untried []Plan
	for _, plan := range buildCatalog(model) {
		if !tried[plan.Signature()] {
			untried = append(untried, plan)
		}
	}
	if len(untried) == 0 {
		return Plan{}, ErrPlanExhausted
	}
	if len(session.History) == 0 {
		return untried[0], nil
	}

	current := session.History[len(session.History)-1].Plan.Strategy
	if SummarizeHistory(session.History).Trend == TrendImproving {
		for _, plan := range untried {
			if plan.Strategy == current {
				return plan, nil
			}
		}
	} else {
		for _, plan := range untried {
			if plan.Strategy != current {
				return plan, nil
			}
		}
	}
	return untried[0], nil
}

// buildCatalog enumerates candidate plans in proposal order. The baseline
// always comes first so every session starts from a known reference point;
// transformations follow, targeting the hottest operations first.
func buildCatalog(model *workload.Model) []Plan {
	ops := model.Ops()
	hot := hotOps(ops)

	catalog := []Plan{{Strategy: StrategyBaseline}}

	// Fuse adjacent pairs, hottest pair first.
	type pair struct {
		a, b string
		cost float64
	}
	var pairs []pair
	for i := 0; i+1 < len(ops); i++ {
		pairs = append(pairs, pair{
			a:    ops[i].Name,
			b:    ops[i+1].Name,
			cost: workload.OpCost(ops[i]) + workload.OpCost(ops[i+1]),
		})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].cost > pairs[j].cost })
	for _, pr := range pairs {
		catalog = append(catalog, Plan{Strategy: StrategyFuse, TargetOps: []string{pr.a, pr.b}})
	}

	// Tile the hot dense operations at two block sizes.
	for _, op := range hot {
		if op.Kind != "matmul" {
			continue
		}
		for _, tile := range []int{32, 64} {
			catalog = append(catalog, Plan{
				Strategy:  StrategyTile,
				TargetOps: []string{op.Name},
				Params:    map[string]int{"tile": tile},
			})
		}
	}

	// Vectorize elementwise and reduction operations.
	for _, op := range hot {
		if op.Kind != "elementwise" && op.Kind != "reduce" {
			continue
		}
		catalog = append(catalog, Plan{
			Strategy:  StrategyVectorize,
			TargetOps: []string{op.Name},
			Params:    map[string]int{"width": 8},
		})
	}

	// Precision truncation applies to spectral and dense ops above fp16.
	for _, op := range hot {
		if !truncatable(op) {
			continue
		}
		catalog = append(catalog, Plan{Strategy: StrategyTruncate, TargetOps: []string{op.Name}})
	}

	// Combined fuse plus truncate for the hottest adjacent pair.
	if len(pairs) > 0 {
		catalog = append(catalog, Plan{
			Strategy:  StrategyFuseTruncate,
			TargetOps: []string{pairs[0].a, pairs[0].b},
		})
	}

	return catalog
}

// hotOps returns the model's operations ordered by estimated cost, hottest
// first. Ties keep declaration order.
func hotOps(ops []workload.Operation) []workload.Operation {
	ranked := make([]workload.Operation, len(ops))
	copy(ranked, ops)
	sort.SliceStable(ranked, func(i, j int) bool {
		return workload.OpCost(ranked[i]) > workload.OpCost(ranked[j])
	})
	return ranked
}

func truncatable(op workload.Operation) bool {
	if op.DType != "fp64" && op.DType != "fp32" {
		return false
	}
	switch op.Kind {
	case "matmul", "fft", "ifft":
		return true
	}
	return false
}
