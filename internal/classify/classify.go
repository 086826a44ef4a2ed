// Package classify derives global risk thresholds from per-node scores
// pooled across every area.
package classify

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/scoring"
)

// Sentinel errors.
var (
	ErrEmptyDistribution = eris.New("classify: empty distribution")
	ErrThresholdOrder    = eris.New("classify: threshold ordering violated")
)

// Thresholds are the tier cut points plus summary statistics. Read-only once
// computed.
type Thresholds struct {
	P25  float64 `json:"p25" yaml:"p25"`
	P75  float64 `json:"p75" yaml:"p75"`
	P90  float64 `json:"p90" yaml:"p90"`
	Mean float64 `json:"mean" yaml:"mean"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
}

// Fallback returns the thresholds used before any refresh has succeeded.
func Fallback() Thresholds {
	return Thresholds{
		P25: 0.3310188654580943,
		P75: 0.9482861663702485,
		P90: 2.533931676614649,
	}
}

// Check asserts p25 ≤ p75 ≤ p90 ≤ max and min ≤ mean ≤ max.
func (t Thresholds) Check() error {
	const eps = 1e-9
	if !(t.P25 <= t.P75 && t.P75 <= t.P90 && t.P90 <= t.Max) {
		return eris.Wrapf(ErrThresholdOrder, "classify: p25=%f p75=%f p90=%f max=%f", t.P25, t.P75, t.P90, t.Max)
	}
	if t.Min > t.Mean+eps || t.Mean > t.Max+eps {
		return eris.Wrapf(ErrThresholdOrder, "classify: min=%f mean=%f max=%f", t.Min, t.Mean, t.Max)
	}
	return nil
}

// Classify averages each node's score over the supplied contexts, pools the
// averages across areas and computes the thresholds.
func Classify(byContext map[model.Context]scoring.ScoreMap) (Thresholds, error) {
	return Compute(Pool(NodeAverages(byContext)))
}

// NodeAverages returns area → node → mean score over the contexts in
// byContext, rounded to two decimals. A node missing from a context counts as
// zero there. Only nodes scored in at least one context appear.
func NodeAverages(byContext map[model.Context]scoring.ScoreMap) scoring.ScoreMap {
	out := make(scoring.ScoreMap)
	if len(byContext) == 0 {
		return out
	}
	n := float64(len(byContext))

	sums := make(map[int]map[int64]float64)
	for _, c := range sortedContexts(byContext) {
		for area, nodes := range byContext[c] {
			if sums[area] == nil {
				sums[area] = make(map[int64]float64)
			}
			for id, v := range nodes {
				sums[area][id] += v
			}
		}
	}
	for area, nodes := range sums {
		out[area] = make(scoring.NodeScores, len(nodes))
		for id, sum := range nodes {
			out[area][id] = round2(sum / n)
		}
	}
	return out
}

// Pool flattens area averages into one sorted slice.
func Pool(avgs scoring.ScoreMap) []float64 {
	var out []float64
	for _, nodes := range avgs {
		for _, v := range nodes {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// Compute returns the thresholds of values, which need not be sorted.
func Compute(values []float64) (Thresholds, error) {
	if len(values) == 0 {
		return Thresholds{}, ErrEmptyDistribution
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	t := Thresholds{
		P25:  Percentile(sorted, 25),
		P75:  Percentile(sorted, 75),
		P90:  Percentile(sorted, 90),
		Mean: sum / float64(len(sorted)),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
	}
	if err := t.Check(); err != nil {
		return Thresholds{}, err
	}
	return t, nil
}

// Percentile returns the p-th percentile (0–100) of sorted values using
// linear interpolation between closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(sorted) {
		hi = len(sorted) - 1
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func sortedContexts(m map[model.Context]scoring.ScoreMap) []model.Context {
	out := make([]model.Context, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
