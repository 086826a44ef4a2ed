package graph

import (
	"math"
	"sort"

	"github.com/sells-group/saferoute/internal/model"
)

// Index is a static 2-d tree over a graph's nodes for nearest-node lookups.
// Coordinates are projected equirectangularly around the mean latitude, which
// is accurate enough at city scale. Safe for concurrent reads.
type Index struct {
	nodes  []Node
	xs, ys []float64
	tree   []int // node positions in k-d order
	cosLat float64
}

// NewIndex builds the index once; reuse it for every lookup against g.
func NewIndex(g *StreetGraph) *Index {
	nodes := g.Nodes()
	idx := &Index{
		nodes:  nodes,
		xs:     make([]float64, len(nodes)),
		ys:     make([]float64, len(nodes)),
		tree:   make([]int, len(nodes)),
		cosLat: 1,
	}
	if len(nodes) == 0 {
		return idx
	}

	var sumLat float64
	for _, n := range nodes {
		sumLat += n.Lat
	}
	idx.cosLat = math.Cos(toRad(sumLat / float64(len(nodes))))

	for i, n := range nodes {
		idx.xs[i], idx.ys[i] = idx.project(n.Lat, n.Lng)
		idx.tree[i] = i
	}
	idx.build(0, len(nodes), 0)
	return idx
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int { return len(idx.nodes) }

// Nearest returns the node closest to c. Ties keep the first candidate
// visited. ok is false when the index is empty or c is not a finite
// coordinate.
func (idx *Index) Nearest(c model.Coordinate) (n Node, ok bool) {
	if len(idx.nodes) == 0 {
		return Node{}, false
	}
	x, y := idx.project(c.Lat, c.Lng)
	best, bestDist := -1, math.Inf(1)
	idx.search(0, len(idx.tree), 0, x, y, &best, &bestDist)
	if best < 0 {
		return Node{}, false
	}
	return idx.nodes[best], true
}

func (idx *Index) project(lat, lng float64) (float64, float64) {
	return lng * idx.cosLat, lat
}

func (idx *Index) coord(pos, axis int) float64 {
	if axis == 0 {
		return idx.xs[pos]
	}
	return idx.ys[pos]
}

// build arranges tree[lo:hi] so the median on axis sits at the middle, with
// smaller values to the left.
func (idx *Index) build(lo, hi, depth int) {
	if hi-lo <= 1 {
		return
	}
	axis := depth % 2
	seg := idx.tree[lo:hi]
	sort.SliceStable(seg, func(i, j int) bool {
		return idx.coord(seg[i], axis) < idx.coord(seg[j], axis)
	})
	mid := lo + (hi-lo)/2
	idx.build(lo, mid, depth+1)
	idx.build(mid+1, hi, depth+1)
}

func (idx *Index) search(lo, hi, depth int, x, y float64, best *int, bestDist *float64) {
	if lo >= hi {
		return
	}
	mid := lo + (hi-lo)/2
	pos := idx.tree[mid]
	dx, dy := idx.xs[pos]-x, idx.ys[pos]-y
	if d := dx*dx + dy*dy; d < *bestDist {
		*best, *bestDist = pos, d
	}

	axis := depth % 2
	diff := x - idx.xs[pos]
	if axis == 1 {
		diff = y - idx.ys[pos]
	}

	nearLo, nearHi, farLo, farHi := lo, mid, mid+1, hi
	if diff > 0 {
		nearLo, nearHi, farLo, farHi = mid+1, hi, lo, mid
	}
	idx.search(nearLo, nearHi, depth+1, x, y, best, bestDist)
	if diff*diff < *bestDist {
		idx.search(farLo, farHi, depth+1, x, y, best, bestDist)
	}
}
