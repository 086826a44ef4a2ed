package graph

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// EncodePoint returns the node position as EWKB with SRID 4326, ready for a
// PostGIS geometry column.
func EncodePoint(n Node) ([]byte, error) {
	p := geom.NewPointFlat(geom.XY, []float64{n.Lng, n.Lat}).SetSRID(4326)
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrapf(err, "graph: encode point %d", n.ID)
	}
	return data, nil
}
