package classify

import (
	"math/rand"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/scoring"
)

func TestPercentile_LinearInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.75, Percentile(sorted, 25), 1e-9)
	assert.InDelta(t, 3.25, Percentile(sorted, 75), 1e-9)
	assert.InDelta(t, 3.7, Percentile(sorted, 90), 1e-9)
	assert.InDelta(t, 1, Percentile(sorted, 0), 1e-9)
	assert.InDelta(t, 4, Percentile(sorted, 100), 1e-9)
	assert.Equal(t, 5.0, Percentile([]float64{5}, 90))
	assert.Zero(t, Percentile(nil, 50))
}

func TestCompute(t *testing.T) {
	th, err := Compute([]float64{4, 1, 3, 2})
	require.NoError(t, err)
	assert.InDelta(t, 1.75, th.P25, 1e-9)
	assert.InDelta(t, 2.5, th.Mean, 1e-9)
	assert.Equal(t, 1.0, th.Min)
	assert.Equal(t, 4.0, th.Max)
}

func TestCompute_Empty(t *testing.T) {
	_, err := Compute(nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrEmptyDistribution))
}

func TestCompute_OrderingHoldsForRandomInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(60)
		values := make([]float64, n)
		for i := range values {
			values[i] = rng.ExpFloat64() * 3
		}
		th, err := Compute(values)
		require.NoError(t, err)
		assert.NoError(t, th.Check())
	}
}

func TestCompute_ConstantValues(t *testing.T) {
	th, err := Compute([]float64{0.1, 0.1, 0.1})
	require.NoError(t, err)
	assert.NoError(t, th.Check())
	assert.InDelta(t, 0.1, th.P90, 1e-12)
}

func TestCheck_Violation(t *testing.T) {
	err := Thresholds{P25: 2, P75: 1, P90: 3, Max: 3}.Check()
	assert.True(t, eris.Is(err, ErrThresholdOrder))

	err = Thresholds{P25: 1, P75: 1, P90: 1, Min: 2, Mean: 1, Max: 3}.Check()
	assert.True(t, eris.Is(err, ErrThresholdOrder))
}

func TestNodeAverages(t *testing.T) {
	summerNight := model.Context{Season: model.Summer, TimeOfDay: model.Night}
	winterMorning := model.Context{Season: model.Winter, TimeOfDay: model.Morning}
	byContext := map[model.Context]scoring.ScoreMap{
		summerNight:   {41: {1: 3, 2: 1}},
		winterMorning: {41: {1: 1}, 42: {5: 0.335}},
	}

	avgs := NodeAverages(byContext)
	assert.InDelta(t, 2.0, avgs[41][1], 1e-9)
	assert.InDelta(t, 0.5, avgs[41][2], 1e-9)
	assert.InDelta(t, 0.17, avgs[42][5], 1e-9)

	pooled := Pool(avgs)
	assert.Equal(t, []float64{0.17, 0.5, 2}, pooled)
}

func TestClassify_EmptyInput(t *testing.T) {
	byContext := map[model.Context]scoring.ScoreMap{}
	for _, c := range model.RepresentativeContexts() {
		byContext[c] = scoring.ScoreMap{41: {}, 42: {}}
	}
	_, err := Classify(byContext)
	assert.True(t, eris.Is(err, ErrEmptyDistribution))
}

func TestClassify(t *testing.T) {
	byContext := map[model.Context]scoring.ScoreMap{}
	for _, c := range model.RepresentativeContexts() {
		byContext[c] = scoring.ScoreMap{1: {10: 1, 11: 2}, 2: {20: 3, 21: 4}}
	}
	th, err := Classify(byContext)
	require.NoError(t, err)
	assert.InDelta(t, 1.75, th.P25, 1e-9)
	assert.InDelta(t, 3.25, th.P75, 1e-9)
	assert.InDelta(t, 3.7, th.P90, 1e-9)
}

func TestHotspots(t *testing.T) {
	avgs := scoring.ScoreMap{
		2: {20: 1, 21: 5},
		1: {10: 2, 11: 2},
		3: {},
	}
	got := Hotspots(avgs)
	assert.Equal(t, []Hotspot{
		{Area: 1, NodeID: 10, Score: 2},
		{Area: 2, NodeID: 21, Score: 5},
	}, got)
}

func TestFallback(t *testing.T) {
	f := Fallback()
	assert.Less(t, f.P25, f.P75)
	assert.Less(t, f.P75, f.P90)
}
