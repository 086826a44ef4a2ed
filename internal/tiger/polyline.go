package tiger

import (
	"math"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
)

// lineStrings splits a shapefile PolyLine into one line string per part.
// Parts with fewer than two points are dropped.
func lineStrings(pl *shp.PolyLine) []*geom.LineString {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	out := make([]*geom.LineString, 0, pl.NumParts)
	for i := int32(0); i < pl.NumParts; i++ {
		start := pl.Parts[i]
		end := int32(len(pl.Points))
		if i+1 < pl.NumParts {
			end = pl.Parts[i+1]
		}
		if end-start < 2 {
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, pl.Points[j].X, pl.Points[j].Y)
		}
		out = append(out, geom.NewLineStringFlat(geom.XY, flat).SetSRID(4326))
	}
	return out
}

// coordKey derives a stable node id from a position quantized to 1e-6
// degrees, so segments that share an endpoint share a node.
func coordKey(lng, lat float64) int64 {
	latQ := int64(math.Round((lat + 90) * 1e6))
	lngQ := int64(math.Round((lng + 180) * 1e6))
	return latQ<<30 | lngQ
}
