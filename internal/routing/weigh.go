package routing

import (
	"github.com/sells-group/saferoute/internal/classify"
	"github.com/sells-group/saferoute/internal/graph"
	"github.com/sells-group/saferoute/internal/scoring"
)

// TierSets holds the node ids in each tier.
type TierSets map[Tier]map[int64]struct{}

// Classify places every scored node of g into the nested tiers. In extreme
// weather each score is scaled by scale before comparison. Unscored nodes
// belong to no tier.
func Classify(g *graph.StreetGraph, scores scoring.NodeScores, th classify.Thresholds, extreme bool, scale float64) TierSets {
	sets := TierSets{
		TierSafest: make(map[int64]struct{}),
		TierSafer:  make(map[int64]struct{}),
		TierUnsafe: make(map[int64]struct{}),
	}
	for id, v := range scores {
		if _, ok := g.Node(id); !ok {
			continue
		}
		if extreme {
			v *= scale
		}
		if v >= th.P25 {
			sets[TierSafest][id] = struct{}{}
		}
		if v >= th.P75 {
			sets[TierSafer][id] = struct{}{}
		}
		if v >= th.P90 {
			sets[TierUnsafe][id] = struct{}{}
		}
	}
	return sets
}

// Weigh returns a copy of g with every stage applied in order. An edge is
// scaled by a stage when either endpoint is in the stage's tier. g is never
// modified.
func Weigh(g *graph.StreetGraph, tiers TierSets, stages []Stage) *graph.StreetGraph {
	out := g.Clone()
	if len(stages) == 0 {
		return out
	}
	out.Reweight(func(e graph.Edge) float64 {
		l := e.Length
		for _, s := range stages {
			if e.Touches(tiers[s.Tier]) {
				l *= s.Factor
			}
		}
		return l
	})
	return out
}
