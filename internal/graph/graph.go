// Package graph holds the street network model: nodes, edges, a nearest-node
// index and the geometry helpers the scoring and routing engine needs.
package graph

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/saferoute/internal/model"
)

// Sentinel errors.
var (
	ErrNodeNotFound   = eris.New("graph: node not found")
	ErrDuplicateNode  = eris.New("graph: duplicate node id")
	ErrNegativeLength = eris.New("graph: negative edge length")
)

// Node is a street intersection or shape point.
type Node struct {
	ID  int64   `json:"id"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Coordinate returns the node position.
func (n Node) Coordinate() model.Coordinate {
	return model.Coordinate{Lat: n.Lat, Lng: n.Lng}
}

// Edge is a walkable street segment between two nodes. Edges are traversable
// in both directions unless Oneway is set.
type Edge struct {
	From     int64            `json:"from"`
	To       int64            `json:"to"`
	Length   float64          `json:"length"`
	Oneway   bool             `json:"oneway,omitempty"`
	Geometry *geom.LineString `json:"-"`
}

// Touches reports whether either endpoint is in set.
func (e Edge) Touches(set map[int64]struct{}) bool {
	if _, ok := set[e.From]; ok {
		return true
	}
	_, ok := set[e.To]
	return ok
}

// StreetGraph is a street network for one area or region.
// Node ids are unique; edge lengths are non-negative.
type StreetGraph struct {
	Name  string
	nodes map[int64]Node
	order []int64
	edges []Edge
}

// New returns an empty graph.
func New(name string) *StreetGraph {
	return &StreetGraph{Name: name, nodes: make(map[int64]Node)}
}

// AddNode inserts a node. Re-adding an id fails with ErrDuplicateNode.
func (g *StreetGraph) AddNode(n Node) error {
	if _, ok := g.nodes[n.ID]; ok {
		return eris.Wrapf(ErrDuplicateNode, "graph: add node %d", n.ID)
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return nil
}

// AddEdge inserts an edge between two existing nodes.
func (g *StreetGraph) AddEdge(e Edge) error {
	if e.Length < 0 {
		return eris.Wrapf(ErrNegativeLength, "graph: edge %d-%d length %f", e.From, e.To, e.Length)
	}
	if _, ok := g.nodes[e.From]; !ok {
		return eris.Wrapf(ErrNodeNotFound, "graph: edge from %d", e.From)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return eris.Wrapf(ErrNodeNotFound, "graph: edge to %d", e.To)
	}
	g.edges = append(g.edges, e)
	return nil
}

// Node looks up a node by id.
func (g *StreetGraph) Node(id int64) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node in insertion order.
func (g *StreetGraph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns a copy of the edge list. Edge indexes are stable for the
// lifetime of the graph and are preserved by Clone.
func (g *StreetGraph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Edge returns the edge at index i.
func (g *StreetGraph) Edge(i int) Edge { return g.edges[i] }

// NumNodes returns the node count.
func (g *StreetGraph) NumNodes() int { return len(g.order) }

// NumEdges returns the edge count.
func (g *StreetGraph) NumEdges() int { return len(g.edges) }

// Clone returns an independent copy whose edge lengths can be changed
// without affecting g.
func (g *StreetGraph) Clone() *StreetGraph {
	c := &StreetGraph{
		Name:  g.Name,
		nodes: make(map[int64]Node, len(g.nodes)),
		order: make([]int64, len(g.order)),
		edges: make([]Edge, len(g.edges)),
	}
	for id, n := range g.nodes {
		c.nodes[id] = n
	}
	copy(c.order, g.order)
	copy(c.edges, g.edges)
	return c
}

// Reweight replaces every edge length with fn(edge). Results below zero are
// clamped to zero.
func (g *StreetGraph) Reweight(fn func(Edge) float64) {
	for i := range g.edges {
		l := fn(g.edges[i])
		if l < 0 {
			l = 0
		}
		g.edges[i].Length = l
	}
}

// Crop returns the subgraph of nodes within radius meters of center, keeping
// only edges whose endpoints both survive.
func (g *StreetGraph) Crop(name string, center model.Coordinate, radius float64) *StreetGraph {
	out := New(name)
	for _, id := range g.order {
		n := g.nodes[id]
		if Haversine(center, n.Coordinate()) <= radius {
			_ = out.AddNode(n)
		}
	}
	for _, e := range g.edges {
		_, okFrom := out.nodes[e.From]
		_, okTo := out.nodes[e.To]
		if okFrom && okTo {
			out.edges = append(out.edges, e)
		}
	}
	return out
}

// Merge unions several graphs. Nodes shared between inputs (same id) are kept
// once; edges are concatenated.
func Merge(name string, graphs ...*StreetGraph) *StreetGraph {
	out := New(name)
	for _, g := range graphs {
		if g == nil {
			continue
		}
		for _, id := range g.order {
			if _, ok := out.nodes[id]; !ok {
				_ = out.AddNode(g.nodes[id])
			}
		}
		out.edges = append(out.edges, g.edges...)
	}
	return out
}
