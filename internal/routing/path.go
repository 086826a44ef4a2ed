package routing

import (
	"container/heap"
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/saferoute/internal/graph"
)

// ErrNoPathFound is returned when the endpoints are disconnected.
var ErrNoPathFound = eris.New("routing: no path found")

// Path is a node sequence and the edges joining it.
type Path struct {
	Nodes []int64
	Edges []int // edge indexes into the graph, len(Nodes)-1
	Cost  float64
}

type arc struct {
	to   int64
	edge int
}

// ShortestPath runs Dijkstra from src to dst over the graph's current edge
// lengths. ctx is checked while the frontier is expanded.
func ShortestPath(ctx context.Context, g *graph.StreetGraph, src, dst int64) (Path, error) {
	if _, ok := g.Node(src); !ok {
		return Path{}, eris.Wrapf(graph.ErrNodeNotFound, "routing: origin %d", src)
	}
	if _, ok := g.Node(dst); !ok {
		return Path{}, eris.Wrapf(graph.ErrNodeNotFound, "routing: destination %d", dst)
	}
	if src == dst {
		return Path{Nodes: []int64{src}}, nil
	}

	adj := make(map[int64][]arc, g.NumNodes())
	for i := 0; i < g.NumEdges(); i++ {
		e := g.Edge(i)
		adj[e.From] = append(adj[e.From], arc{to: e.To, edge: i})
		if !e.Oneway {
			adj[e.To] = append(adj[e.To], arc{to: e.From, edge: i})
		}
	}

	dist := map[int64]float64{src: 0}
	prev := make(map[int64]arc)
	done := make(map[int64]bool)
	pq := &frontier{{node: src}}

	for pops := 0; pq.Len() > 0; pops++ {
		if pops%256 == 0 {
			if err := ctx.Err(); err != nil {
				return Path{}, eris.Wrap(err, "routing: shortest path")
			}
		}
		cur := heap.Pop(pq).(item)
		if done[cur.node] {
			continue
		}
		done[cur.node] = true
		if cur.node == dst {
			break
		}
		for _, a := range adj[cur.node] {
			if done[a.to] {
				continue
			}
			nd := cur.dist + g.Edge(a.edge).Length
			if old, ok := dist[a.to]; !ok || nd < old {
				dist[a.to] = nd
				prev[a.to] = arc{to: cur.node, edge: a.edge}
				heap.Push(pq, item{node: a.to, dist: nd})
			}
		}
	}

	cost, ok := dist[dst]
	if !ok || math.IsInf(cost, 1) {
		return Path{}, eris.Wrapf(ErrNoPathFound, "routing: %d → %d", src, dst)
	}

	var p Path
	for n := dst; n != src; {
		step := prev[n]
		p.Nodes = append(p.Nodes, n)
		p.Edges = append(p.Edges, step.edge)
		n = step.to
	}
	p.Nodes = append(p.Nodes, src)
	reverse(p.Nodes)
	reverse(p.Edges)
	p.Cost = cost
	return p, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

type item struct {
	node int64
	dist float64
}

// frontier is a min-heap of tentative distances.
type frontier []item

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].dist != f[j].dist {
		return f[i].dist < f[j].dist
	}
	return f[i].node < f[j].node
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(item)) }
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	x := old[n-1]
	*f = old[:n-1]
	return x
}
