// Package attribution pins incidents to the nearest node of their area's
// street graph.
package attribution

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/saferoute/internal/graph"
	"github.com/sells-group/saferoute/internal/model"
)

// ErrEmptyGraph is returned when the graph has no nodes to attribute to.
var ErrEmptyGraph = eris.New("attribution: empty graph")

// Result holds the attributed incidents plus drop counts.
type Result struct {
	Incidents []model.AttributedIncident
	// Dropped counts incidents missing a coordinate or timestamp, or whose
	// coordinate has no nearest node.
	Dropped int
}

// Attribute maps every complete incident to its nearest node in g. The
// nearest-node index is built once per call. Input incidents are not
// modified.
func Attribute(incidents []model.Incident, g *graph.StreetGraph) (Result, error) {
	if g == nil || g.NumNodes() == 0 {
		return Result{}, ErrEmptyGraph
	}
	return AttributeWith(incidents, graph.NewIndex(g))
}

// AttributeWith is Attribute against a prebuilt index.
func AttributeWith(incidents []model.Incident, idx *graph.Index) (Result, error) {
	if idx == nil || idx.Len() == 0 {
		return Result{}, ErrEmptyGraph
	}
	res := Result{Incidents: make([]model.AttributedIncident, 0, len(incidents))}
	for _, inc := range incidents {
		if !inc.Complete() {
			res.Dropped++
			continue
		}
		n, ok := idx.Nearest(*inc.Location)
		if !ok {
			res.Dropped++
			continue
		}
		res.Incidents = append(res.Incidents, model.Attribute(inc, n.ID))
	}
	return res, nil
}
