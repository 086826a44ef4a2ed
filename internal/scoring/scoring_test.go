package scoring

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/saferoute/internal/model"
)

var now = time.Date(2024, 7, 4, 22, 0, 0, 0, time.UTC)

func attributed(category string, at time.Time, node int64) model.AttributedIncident {
	return model.Attribute(model.Incident{
		Category:   category,
		OccurredAt: at,
		Location:   &model.Coordinate{Lat: 41.8, Lng: -87.6},
	}, node)
}

func TestScore_Examples(t *testing.T) {
	s := NewScorer(DefaultWeights(), DefaultParams())
	inc := attributed("HOMICIDE", now.AddDate(0, 0, -365), 1)
	require.Equal(t, model.Summer, inc.Season)
	require.Equal(t, model.Night, inc.TimeOfDay)

	match := s.Score(inc, Query{Context: model.Context{Season: model.Summer, TimeOfDay: model.Night}, Now: now})
	assert.InDelta(t, 9.64, match, 0.01)

	mismatch := s.Score(inc, Query{Context: model.Context{Season: model.Winter, TimeOfDay: model.Morning}, Now: now})
	assert.InDelta(t, 0.386, mismatch, 0.001)
}

func TestScore_UnknownCategory(t *testing.T) {
	s := NewScorer(DefaultWeights(), DefaultParams())
	inc := attributed("JAYWALKING", now, 1)
	assert.Zero(t, s.Score(inc, Query{Context: model.ContextAt(now), Now: now}))
}

func TestScore_DoesNotMutate(t *testing.T) {
	s := NewScorer(DefaultWeights(), DefaultParams())
	inc := attributed("THEFT", now, 7)
	before := inc
	_ = s.Score(inc, Query{Context: model.ContextAt(now), Now: now})
	assert.Equal(t, before, inc)
}

func TestContextFactor(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 1.0, p.ContextFactor(true))
	assert.Equal(t, 0.2, p.ContextFactor(false))
}

func TestDecay_Monotone(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 1.0, p.Decay(0))
	assert.Equal(t, 1.0, p.Decay(-5))
	prev := p.Decay(0)
	for d := 1; d <= 3650; d++ {
		cur := p.Decay(d)
		assert.LessOrEqual(t, cur, prev, "day %d", d)
		prev = cur
	}
}

func TestAgeDays(t *testing.T) {
	assert.Equal(t, 0, AgeDays(now, now))
	assert.Equal(t, 0, AgeDays(now.Add(48*time.Hour), now))
	assert.Equal(t, 0, AgeDays(now.Add(-23*time.Hour), now))
	assert.Equal(t, 1, AgeDays(now.Add(-25*time.Hour), now))
	assert.Equal(t, 365, AgeDays(now.AddDate(0, 0, -365), now))
}

func TestAggregate(t *testing.T) {
	s := NewScorer(DefaultWeights(), DefaultParams())
	q := Query{Context: model.ContextAt(now), Now: now}
	incs := []model.AttributedIncident{
		attributed("THEFT", now, 1),
		attributed("BATTERY", now, 1),
		attributed("ROBBERY", now, 2),
	}

	got := s.Aggregate(incs, q)
	assert.Len(t, got, 2)
	assert.InDelta(t, 3.0, got.Get(1), 1e-9)
	assert.InDelta(t, 1.0, got.Get(2), 1e-9)
	assert.Zero(t, got.Get(99))
	assert.Equal(t, []int64{1, 2}, got.IDs())
}

func TestAggregate_Idempotent(t *testing.T) {
	s := NewScorer(DefaultWeights(), DefaultParams())
	q := Query{Context: model.Context{Season: model.Winter, TimeOfDay: model.Night}, Now: now}
	var incs []model.AttributedIncident
	cats := []string{"THEFT", "HOMICIDE", "NARCOTICS", "ASSAULT"}
	for i := 0; i < 40; i++ {
		incs = append(incs, attributed(cats[i%len(cats)], now.AddDate(0, 0, -i*11), int64(i%5)))
	}

	first := s.Aggregate(incs, q)
	second := s.Aggregate(incs, q)
	assert.Equal(t, first, second)

	reversed := make([]model.AttributedIncident, len(incs))
	for i := range incs {
		reversed[len(incs)-1-i] = incs[i]
	}
	assert.Equal(t, first, s.Aggregate(reversed, q))
}

func TestScoreMap_Combined(t *testing.T) {
	m := ScoreMap{
		2: NodeScores{10: 1, 11: 2},
		1: NodeScores{10: 0.5, 12: 4},
	}
	assert.Equal(t, []int{1, 2}, m.Areas())
	assert.Equal(t, NodeScores{10: 1.5, 11: 2, 12: 4}, m.Combined())
}

func TestWeights(t *testing.T) {
	w := DefaultWeights()
	assert.Equal(t, 20.0, w.Weight("homicide"))
	assert.Equal(t, 0.5, w.Weight("STALKING"))
	assert.Equal(t, 0.1, w.Weight("GAMBLING"))
	assert.Zero(t, w.Weight("NON-CRIMINAL"))
	assert.Zero(t, w.Weight("UNKNOWN"))
	assert.Contains(t, w.Categories(), "HUMAN TRAFFICKING")

	_, err := NewWeights(map[string]float64{"THEFT": -1})
	assert.Error(t, err)
}

func TestLoadWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theft: 3\nhomicide: 50\n"), 0o644))

	w, err := LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, 3.0, w.Weight("THEFT"))
	assert.Equal(t, 50.0, w.Weight("HOMICIDE"))
	assert.Zero(t, w.Weight("BATTERY"))

	def, err := LoadWeights("")
	require.NoError(t, err)
	assert.Equal(t, 2.0, def.Weight("BATTERY"))
}
