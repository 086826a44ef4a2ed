package classify

import (
	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/scoring"
)

// Hotspot is the highest-scoring node of an area. Location is filled in by
// callers that hold the area's graph.
type Hotspot struct {
	Area     int              `json:"area"`
	NodeID   int64            `json:"node_id"`
	Score    float64          `json:"score"`
	Location model.Coordinate `json:"location"`
}

// Hotspots returns one hotspot per area with at least one scored node,
// ordered by area code. Ties go to the lowest node id.
func Hotspots(avgs scoring.ScoreMap) []Hotspot {
	out := make([]Hotspot, 0, len(avgs))
	for _, area := range avgs.Areas() {
		nodes := avgs[area]
		if len(nodes) == 0 {
			continue
		}
		best := Hotspot{Area: area, Score: -1}
		for _, id := range nodes.IDs() {
			if v := nodes[id]; v > best.Score {
				best.NodeID, best.Score = id, v
			}
		}
		out = append(out, best)
	}
	return out
}
