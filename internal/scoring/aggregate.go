package scoring

import (
	"sort"

	"github.com/sells-group/saferoute/internal/model"
)

// NodeScores maps node id to accumulated score. Absent nodes score zero.
type NodeScores map[int64]float64

// Get returns the score for id, zero when absent.
func (n NodeScores) Get(id int64) float64 { return n[id] }

// IDs returns the scored node ids in ascending order.
func (n NodeScores) IDs() []int64 {
	out := make([]int64, 0, len(n))
	for id := range n {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ScoreMap is the per-area node score table for one context.
type ScoreMap map[int]NodeScores

// Areas returns the area codes in ascending order.
func (m ScoreMap) Areas() []int {
	out := make([]int, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	sort.Ints(out)
	return out
}

// Combined merges every area into one table. A node present in several areas
// gets the sum of its scores, matching the sum-over-incidents definition.
func (m ScoreMap) Combined() NodeScores {
	out := make(NodeScores)
	for _, area := range m.Areas() {
		for id, v := range m[area] {
			out[id] += v
		}
	}
	return out
}

// Aggregate sums the contextual score of every incident per nearest node.
// Nodes with no incidents are absent. Each node's scores are summed in
// ascending order so the result does not depend on input order.
func (s Scorer) Aggregate(incs []model.AttributedIncident, q Query) NodeScores {
	byNode := make(map[int64][]float64)
	for _, inc := range incs {
		byNode[inc.NodeID] = append(byNode[inc.NodeID], s.Score(inc, q))
	}
	out := make(NodeScores, len(byNode))
	for id, scores := range byNode {
		sort.Float64s(scores)
		var sum float64
		for _, v := range scores {
			sum += v
		}
		out[id] = sum
	}
	return out
}
