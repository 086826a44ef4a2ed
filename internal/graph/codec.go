package graph

import (
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

type wireGraph struct {
	Name  string     `json:"name"`
	Nodes []Node     `json:"nodes"`
	Edges []wireEdge `json:"edges"`
}

type wireEdge struct {
	From     int64        `json:"from"`
	To       int64        `json:"to"`
	Length   float64      `json:"length"`
	Oneway   bool         `json:"oneway,omitempty"`
	Geometry [][2]float64 `json:"geometry,omitempty"`
}

// MarshalJSON encodes the graph with nodes in insertion order. Edge geometry
// is written as [lng, lat] pairs.
func (g *StreetGraph) MarshalJSON() ([]byte, error) {
	w := wireGraph{Name: g.Name, Nodes: g.Nodes(), Edges: make([]wireEdge, 0, len(g.edges))}
	for _, e := range g.edges {
		we := wireEdge{From: e.From, To: e.To, Length: e.Length, Oneway: e.Oneway}
		if e.Geometry != nil {
			for i := 0; i < e.Geometry.NumCoords(); i++ {
				c := e.Geometry.Coord(i)
				we.Geometry = append(we.Geometry, [2]float64{c.X(), c.Y()})
			}
		}
		w.Edges = append(w.Edges, we)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a graph, enforcing the same invariants as AddNode
// and AddEdge.
func (g *StreetGraph) UnmarshalJSON(data []byte) error {
	var w wireGraph
	if err := json.Unmarshal(data, &w); err != nil {
		return eris.Wrap(err, "graph: decode json")
	}
	out := New(w.Name)
	for _, n := range w.Nodes {
		if err := out.AddNode(n); err != nil {
			return err
		}
	}
	for _, we := range w.Edges {
		e := Edge{From: we.From, To: we.To, Length: we.Length, Oneway: we.Oneway}
		if len(we.Geometry) >= 2 {
			flat := make([]float64, 0, len(we.Geometry)*2)
			for _, p := range we.Geometry {
				flat = append(flat, p[0], p[1])
			}
			e.Geometry = geom.NewLineStringFlat(geom.XY, flat).SetSRID(4326)
		}
		if err := out.AddEdge(e); err != nil {
			return err
		}
	}
	*g = *out
	return nil
}

// WriteJSON streams g to w.
func WriteJSON(w io.Writer, g *StreetGraph) error {
	data, err := g.MarshalJSON()
	if err != nil {
		return eris.Wrap(err, "graph: encode json")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "graph: write json")
	}
	return nil
}

// ReadJSON decodes a graph from r.
func ReadJSON(r io.Reader) (*StreetGraph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "graph: read json")
	}
	g := New("")
	if err := g.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return g, nil
}

// LoadFile reads a JSON graph file.
func LoadFile(path string) (*StreetGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "graph: open %s", path)
	}
	defer func() { _ = f.Close() }()
	g, err := ReadJSON(f)
	if err != nil {
		return nil, eris.Wrapf(err, "graph: load %s", path)
	}
	return g, nil
}
