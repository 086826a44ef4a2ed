// Package tiger turns Census TIGER/Line road shapefiles into street graphs.
package tiger

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/saferoute/internal/graph"
)

// LoadStats counts what LoadRoads kept and skipped.
type LoadStats struct {
	Records  int
	Skipped  int
	Segments int
}

// LoadRoads reads a TIGER/Line EDGES or ROADS shapefile (or the ZIP it ships
// in) and builds a street graph named name.
//
// EDGES files carry TNIDF/TNIDT topology node ids, which become graph node
// ids. ROADS files have none, so endpoints are keyed by quantized
// coordinate. Non-road features (MTFCC outside the S class, or ROADFLG other
// than Y) are skipped.
func LoadRoads(path, name string) (*graph.StreetGraph, LoadStats, error) {
	log := zap.L().With(
		zap.String("component", "tiger.roads"),
		zap.String("graph", name),
	)

	shpPath := path
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		dir, err := os.MkdirTemp("", "saferoute-tiger-*")
		if err != nil {
			return nil, LoadStats{}, eris.Wrap(err, "tiger: temp dir")
		}
		defer func() { _ = os.RemoveAll(dir) }()
		if shpPath, err = Unpack(path, dir); err != nil {
			return nil, LoadStats{}, err
		}
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, LoadStats{}, eris.Wrapf(err, "tiger: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		fieldIdx[strings.ToLower(strings.TrimRight(f.String(), "\x00"))] = i
	}
	attr := func(field string) (string, bool) {
		idx, ok := fieldIdx[field]
		if !ok {
			return "", false
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00")), true
	}

	g := graph.New(name)
	var stats LoadStats

	for reader.Next() {
		stats.Records++
		_, shape := reader.Shape()

		if v, ok := attr("roadflg"); ok && v != "Y" {
			stats.Skipped++
			continue
		}
		if v, ok := attr("mtfcc"); ok && v != "" && !strings.HasPrefix(v, "S") {
			stats.Skipped++
			continue
		}

		pl, ok := shape.(*shp.PolyLine)
		if !ok {
			stats.Skipped++
			continue
		}
		lines := lineStrings(pl)
		if len(lines) == 0 {
			stats.Skipped++
			continue
		}

		fromID, toID, topo := topologyIDs(attr)
		if topo && len(lines) != 1 {
			topo = false
		}

		for _, ls := range lines {
			first, last := endpoints(ls)
			from := graph.Node{ID: coordKey(first.X(), first.Y()), Lat: first.Y(), Lng: first.X()}
			to := graph.Node{ID: coordKey(last.X(), last.Y()), Lat: last.Y(), Lng: last.X()}
			if topo {
				from.ID, to.ID = fromID, toID
			}
			if from.ID == to.ID {
				continue
			}
			ensureNode(g, from)
			ensureNode(g, to)
			if err := g.AddEdge(graph.Edge{
				From:     from.ID,
				To:       to.ID,
				Length:   graph.LineLength(ls),
				Geometry: ls,
			}); err != nil {
				return nil, stats, eris.Wrapf(err, "tiger: record %d", stats.Records)
			}
			stats.Segments++
		}
	}
	if err := reader.Err(); err != nil {
		return nil, stats, eris.Wrapf(err, "tiger: read shapefile %s", shpPath)
	}

	log.Info("loaded road network",
		zap.Int("records", stats.Records),
		zap.Int("skipped", stats.Skipped),
		zap.Int("nodes", g.NumNodes()),
		zap.Int("edges", g.NumEdges()),
	)
	return g, stats, nil
}

func topologyIDs(attr func(string) (string, bool)) (from, to int64, ok bool) {
	f, okF := attr("tnidf")
	t, okT := attr("tnidt")
	if !okF || !okT {
		return 0, 0, false
	}
	from, errF := strconv.ParseInt(f, 10, 64)
	to, errT := strconv.ParseInt(t, 10, 64)
	if errF != nil || errT != nil {
		return 0, 0, false
	}
	return from, to, true
}

func ensureNode(g *graph.StreetGraph, n graph.Node) {
	if _, ok := g.Node(n.ID); !ok {
		_ = g.AddNode(n)
	}
}

func endpoints(ls *geom.LineString) (geom.Coord, geom.Coord) {
	return ls.Coord(0), ls.Coord(ls.NumCoords() - 1)
}
