// Package scoring turns attributed incidents into contextual per-node safety
// scores.
package scoring

import (
	"math"
	"time"

	"github.com/sells-group/saferoute/internal/model"
)

// Params holds the contextual factors and daily decay base.
type Params struct {
	DecayBase      float64 `yaml:"decay_base"`
	MatchFactor    float64 `yaml:"match_factor"`
	MismatchFactor float64 `yaml:"mismatch_factor"`
}

// DefaultParams returns decay 0.998 per day with 1.0/0.2 context factors.
func DefaultParams() Params {
	return Params{DecayBase: 0.998, MatchFactor: 1.0, MismatchFactor: 0.2}
}

// Query is the context a score is computed for.
type Query struct {
	Context model.Context
	Now     time.Time
}

// Scorer computes contextual incident scores. It is a value type and safe
// for concurrent use.
type Scorer struct {
	weights Weights
	params  Params
}

// NewScorer returns a scorer over the given weight table and params.
func NewScorer(w Weights, p Params) Scorer {
	return Scorer{weights: w, params: p}
}

// Score returns type_weight × cf(season) × cf(time_of_day) × decay(age).
// It never mutates inc.
func (s Scorer) Score(inc model.AttributedIncident, q Query) float64 {
	w := s.weights.Weight(inc.Category)
	if w == 0 {
		return 0
	}
	return w *
		s.params.ContextFactor(inc.Season == q.Context.Season) *
		s.params.ContextFactor(inc.TimeOfDay == q.Context.TimeOfDay) *
		s.params.Decay(AgeDays(inc.OccurredAt, q.Now))
}

// ContextFactor returns MatchFactor on a match, MismatchFactor otherwise.
func (p Params) ContextFactor(match bool) float64 {
	if match {
		return p.MatchFactor
	}
	return p.MismatchFactor
}

// Decay returns DecayBase^ageDays. Negative ages decay as zero.
func (p Params) Decay(ageDays int) float64 {
	if ageDays <= 0 {
		return 1
	}
	return math.Pow(p.DecayBase, float64(ageDays))
}

// AgeDays returns the whole days elapsed from t to now, clamped at zero.
func AgeDays(t, now time.Time) int {
	days := now.Sub(t).Hours() / 24
	if days <= 0 {
		return 0
	}
	return int(math.Floor(days))
}
