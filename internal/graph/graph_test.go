package graph

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/saferoute/internal/model"
)

func triangle(t *testing.T) *StreetGraph {
	t.Helper()
	g := New("tri")
	require.NoError(t, g.AddNode(Node{ID: 1, Lat: 41.80, Lng: -87.60}))
	require.NoError(t, g.AddNode(Node{ID: 2, Lat: 41.80, Lng: -87.59}))
	require.NoError(t, g.AddNode(Node{ID: 3, Lat: 41.81, Lng: -87.595}))
	require.NoError(t, g.AddEdge(Edge{From: 1, To: 2, Length: 10}))
	require.NoError(t, g.AddEdge(Edge{From: 1, To: 3, Length: 8}))
	require.NoError(t, g.AddEdge(Edge{From: 3, To: 2, Length: 8}))
	return g
}

func TestAddNode_Duplicate(t *testing.T) {
	g := New("x")
	require.NoError(t, g.AddNode(Node{ID: 1}))
	err := g.AddNode(Node{ID: 1})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrDuplicateNode))
}

func TestAddEdge_Invariants(t *testing.T) {
	g := New("x")
	require.NoError(t, g.AddNode(Node{ID: 1}))

	err := g.AddEdge(Edge{From: 1, To: 9, Length: 1})
	assert.True(t, eris.Is(err, ErrNodeNotFound))

	require.NoError(t, g.AddNode(Node{ID: 2}))
	err = g.AddEdge(Edge{From: 1, To: 2, Length: -1})
	assert.True(t, eris.Is(err, ErrNegativeLength))
	assert.Equal(t, 0, g.NumEdges())
}

func TestNodes_InsertionOrder(t *testing.T) {
	g := triangle(t)
	ids := make([]int64, 0, 3)
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestClone_Independent(t *testing.T) {
	g := triangle(t)
	c := g.Clone()
	c.Reweight(func(e Edge) float64 { return e.Length * 3 })

	assert.InDelta(t, 30, c.Edge(0).Length, 1e-9)
	assert.InDelta(t, 10, g.Edge(0).Length, 1e-9)
}

func TestReweight_ClampsNegative(t *testing.T) {
	g := triangle(t)
	g.Reweight(func(Edge) float64 { return -5 })
	for _, e := range g.Edges() {
		assert.Zero(t, e.Length)
	}
}

func TestEdge_Touches(t *testing.T) {
	e := Edge{From: 1, To: 2}
	assert.True(t, e.Touches(map[int64]struct{}{2: {}}))
	assert.False(t, e.Touches(map[int64]struct{}{3: {}}))
}

func TestCrop(t *testing.T) {
	g := triangle(t)
	center := model.Coordinate{Lat: 41.80, Lng: -87.595}
	c := g.Crop("crop", center, 500)

	assert.Equal(t, 2, c.NumNodes())
	assert.Equal(t, 1, c.NumEdges())
	assert.Equal(t, int64(1), c.Edge(0).From)
	assert.Equal(t, int64(2), c.Edge(0).To)
}

func TestMerge_SharedNodes(t *testing.T) {
	a := New("a")
	require.NoError(t, a.AddNode(Node{ID: 1}))
	require.NoError(t, a.AddNode(Node{ID: 2}))
	require.NoError(t, a.AddEdge(Edge{From: 1, To: 2, Length: 1}))

	b := New("b")
	require.NoError(t, b.AddNode(Node{ID: 2}))
	require.NoError(t, b.AddNode(Node{ID: 3}))
	require.NoError(t, b.AddEdge(Edge{From: 2, To: 3, Length: 1}))

	m := Merge("ab", a, nil, b)
	assert.Equal(t, 3, m.NumNodes())
	assert.Equal(t, 2, m.NumEdges())
}

func TestHaversine(t *testing.T) {
	a := model.Coordinate{Lat: 41.8781, Lng: -87.6298}
	b := model.Coordinate{Lat: 41.7943, Lng: -87.5907}
	assert.InDelta(t, 9900, Haversine(a, b), 100)
	assert.Zero(t, Haversine(a, a))
	assert.Less(t, HaversineWithRadius(a, b, 6367000), Haversine(a, b))
}

func TestMidpoint(t *testing.T) {
	a := model.Coordinate{Lat: 41.0, Lng: -88.0}
	b := model.Coordinate{Lat: 42.0, Lng: -87.0}
	m := Midpoint(a, b)
	assert.InDelta(t, 41.5, m.Lat, 0.01)
	assert.InDelta(t, -87.5, m.Lng, 0.01)
	assert.InDelta(t, Haversine(a, m), Haversine(m, b), 1)
}

func TestLineLength(t *testing.T) {
	a := Node{ID: 1, Lat: 41.80, Lng: -87.60}
	b := Node{ID: 2, Lat: 41.80, Lng: -87.59}
	assert.InDelta(t, Haversine(a.Coordinate(), b.Coordinate()), LineLength(StraightLine(a, b)), 1e-6)
	assert.Zero(t, LineLength(nil))
}

func TestIndex_Nearest(t *testing.T) {
	g := triangle(t)
	idx := NewIndex(g)
	assert.Equal(t, 3, idx.Len())

	n, ok := idx.Nearest(model.Coordinate{Lat: 41.8099, Lng: -87.5951})
	require.True(t, ok)
	assert.Equal(t, int64(3), n.ID)

	n, ok = idx.Nearest(model.Coordinate{Lat: 41.7999, Lng: -87.6001})
	require.True(t, ok)
	assert.Equal(t, int64(1), n.ID)
}

func TestIndex_MatchesBruteForce(t *testing.T) {
	g := New("grid")
	var id int64
	for i := 0; i < 20; i++ {
		for j := 0; j < 20; j++ {
			id++
			require.NoError(t, g.AddNode(Node{ID: id, Lat: 41.7 + float64(i)*0.003, Lng: -87.7 + float64(j)*0.004}))
		}
	}
	idx := NewIndex(g)

	queries := []model.Coordinate{
		{Lat: 41.7131, Lng: -87.6567},
		{Lat: 41.7502, Lng: -87.6211},
		{Lat: 41.6900, Lng: -87.7100},
		{Lat: 41.7600, Lng: -87.6305},
	}
	for _, q := range queries {
		got, ok := idx.Nearest(q)
		require.True(t, ok)

		best, bestDist := Node{}, -1.0
		for _, n := range g.Nodes() {
			if d := Haversine(q, n.Coordinate()); bestDist < 0 || d < bestDist {
				best, bestDist = n, d
			}
		}
		assert.Equal(t, best.ID, got.ID, "query %+v", q)
	}
}

func TestIndex_Empty(t *testing.T) {
	_, ok := NewIndex(New("empty")).Nearest(model.Coordinate{})
	assert.False(t, ok)
}

func TestIndex_NonFiniteQuery(t *testing.T) {
	idx := NewIndex(triangle(t))
	for _, q := range []model.Coordinate{
		{Lat: math.NaN(), Lng: -87.6},
		{Lat: 41.8, Lng: math.Inf(1)},
		{Lat: math.Inf(-1), Lng: math.NaN()},
	} {
		assert.NotPanics(t, func() {
			_, ok := idx.Nearest(q)
			assert.False(t, ok, "query %+v", q)
		})
	}
}

func TestJSON_RoundTripPreservesGraph(t *testing.T) {
	g := triangle(t)
	e := g.edges[0]
	e.Geometry = StraightLine(Node{Lat: 41.80, Lng: -87.60}, Node{Lat: 41.80, Lng: -87.59})
	g.edges[0] = e

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, g))

	path := filepath.Join(t.TempDir(), "g.json")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tri", got.Name)
	assert.Equal(t, g.Nodes(), got.Nodes())
	require.Equal(t, 3, got.NumEdges())
	require.NotNil(t, got.Edge(0).Geometry)
	assert.Equal(t, 2, got.Edge(0).Geometry.NumCoords())
	assert.Nil(t, got.Edge(1).Geometry)
}

func TestReadJSON_RejectsDanglingEdge(t *testing.T) {
	_, err := ReadJSON(bytes.NewBufferString(`{"name":"x","nodes":[{"id":1}],"edges":[{"from":1,"to":2,"length":1}]}`))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNodeNotFound))
}

func TestEncodePoint(t *testing.T) {
	data, err := EncodePoint(Node{ID: 7, Lat: 41.8, Lng: -87.6})
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	p, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, 4326, p.SRID())
	assert.InDelta(t, -87.6, p.X(), 1e-9)
	assert.InDelta(t, 41.8, p.Y(), 1e-9)
}
