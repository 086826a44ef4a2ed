package graph

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/saferoute/internal/model"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b model.Coordinate) float64 {
	return HaversineWithRadius(a, b, EarthRadiusMeters)
}

// HaversineWithRadius is Haversine on a sphere of the given radius in meters.
func HaversineWithRadius(a, b model.Coordinate, radius float64) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * radius * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Midpoint returns the spherical midpoint of a and b.
func Midpoint(a, b model.Coordinate) model.Coordinate {
	var x, y, z float64
	for _, c := range []model.Coordinate{a, b} {
		lat, lng := toRad(c.Lat), toRad(c.Lng)
		x += math.Cos(lat) * math.Cos(lng)
		y += math.Cos(lat) * math.Sin(lng)
		z += math.Sin(lat)
	}
	x, y, z = x/2, y/2, z/2
	lng := math.Atan2(y, x)
	lat := math.Atan2(z, math.Sqrt(x*x+y*y))
	return model.Coordinate{Lat: toDeg(lat), Lng: toDeg(lng)}
}

// LineLength returns the length in meters of a lon/lat line string.
func LineLength(ls *geom.LineString) float64 {
	if ls == nil || ls.NumCoords() < 2 {
		return 0
	}
	var total float64
	prev := ls.Coord(0)
	for i := 1; i < ls.NumCoords(); i++ {
		cur := ls.Coord(i)
		total += Haversine(
			model.Coordinate{Lat: prev.Y(), Lng: prev.X()},
			model.Coordinate{Lat: cur.Y(), Lng: cur.X()},
		)
		prev = cur
	}
	return total
}

// StraightLine builds a two-point line string between two nodes.
func StraightLine(a, b Node) *geom.LineString {
	return geom.NewLineStringFlat(geom.XY, []float64{a.Lng, a.Lat, b.Lng, b.Lat}).SetSRID(4326)
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }
