// Package network resolves street graphs for areas and unbounded regions
// from files on disk, backed by the Badger graph cache.
package network

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/saferoute/internal/area"
	"github.com/sells-group/saferoute/internal/graph"
	"github.com/sells-group/saferoute/internal/graphcache"
	"github.com/sells-group/saferoute/internal/metrics"
	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/routing"
	"github.com/sells-group/saferoute/internal/tiger"
)

// extensions are tried in order when looking up an area's graph file.
var extensions = []string{".json", ".shp", ".zip"}

// Source loads and memoizes street graphs. Loaded graphs are shared and
// must be treated as read-only. Safe for concurrent use.
type Source struct {
	dir      string
	cityPath string
	areas    area.Registry
	cache    *graphcache.Cache
	metrics  *metrics.Metrics
	log      *zap.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	loaded map[string]*graph.StreetGraph
}

// Options configures a Source.
type Options struct {
	// Dir holds one graph file per area, named by slug (HYDE_PARK.json) or
	// code (41.shp).
	Dir string
	// CityPath is the whole-city graph used for unbounded routing. When
	// empty, every area graph is merged instead.
	CityPath string
	Areas    area.Registry
	Cache    *graphcache.Cache
	Metrics  *metrics.Metrics
}

// NewSource returns a Source. Cache and Metrics may be nil.
func NewSource(opts Options) *Source {
	return &Source{
		dir:      opts.Dir,
		cityPath: opts.CityPath,
		areas:    opts.Areas,
		cache:    opts.Cache,
		metrics:  opts.Metrics,
		log:      zap.L().With(zap.String("component", "network")),
		loaded:   make(map[string]*graph.StreetGraph),
	}
}

var _ routing.GraphProvider = (*Source)(nil)

// AreaGraph returns the graph for an area code.
func (s *Source) AreaGraph(ctx context.Context, code int) (*graph.StreetGraph, error) {
	slug, ok := s.areas.Slug(code)
	if !ok {
		return nil, eris.Wrapf(routing.ErrUnknownArea, "network: area %d", code)
	}
	path, err := s.areaFile(code, slug)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, slug, path)
}

// CityGraph returns the whole-city graph.
func (s *Source) CityGraph(ctx context.Context) (*graph.StreetGraph, error) {
	if s.cityPath != "" {
		return s.load(ctx, "CITY", s.cityPath)
	}

	v, err, _ := s.group.Do("merged:CITY", func() (any, error) {
		if g := s.memo("merged:CITY"); g != nil {
			return g, nil
		}
		var parts []*graph.StreetGraph
		for _, code := range s.areas.Codes() {
			g, err := s.AreaGraph(ctx, code)
			if eris.Is(err, routing.ErrUnknownArea) {
				continue
			}
			if err != nil {
				return nil, err
			}
			parts = append(parts, g)
		}
		if len(parts) == 0 {
			return nil, eris.Errorf("network: no area graphs in %s", s.dir)
		}
		city := graph.Merge("CITY", parts...)
		s.remember("merged:CITY", city)
		return city, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*graph.StreetGraph), nil
}

// RegionGraph crops the city graph to a disk.
func (s *Source) RegionGraph(ctx context.Context, center model.Coordinate, radius float64) (*graph.StreetGraph, error) {
	city, err := s.CityGraph(ctx)
	if err != nil {
		return nil, err
	}
	return city.Crop("REGION", center, radius), nil
}

func (s *Source) areaFile(code int, slug string) (string, error) {
	for _, base := range []string{slug, strconv.Itoa(code)} {
		for _, ext := range extensions {
			p := filepath.Join(s.dir, base+ext)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", eris.Wrapf(routing.ErrUnknownArea, "network: no graph file for area %d (%s) in %s", code, slug, s.dir)
}

func (s *Source) load(ctx context.Context, name, path string) (*graph.StreetGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "network: load")
	}
	v, err, _ := s.group.Do(path, func() (any, error) {
		if g := s.memo(path); g != nil {
			return g, nil
		}
		g, err := s.loadFile(name, path)
		if err != nil {
			return nil, err
		}
		s.remember(path, g)
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*graph.StreetGraph), nil
}

func (s *Source) loadFile(name, path string) (*graph.StreetGraph, error) {
	var fp string
	if s.cache != nil {
		var err error
		if fp, err = graphcache.Fingerprint(path); err != nil {
			return nil, err
		}
		g, ok, err := s.cache.Get(name, fp)
		if err != nil {
			s.log.Warn("graph cache read failed", zap.String("graph", name), zap.Error(err))
		}
		s.metrics.CacheLookup(ok)
		if ok {
			return g, nil
		}
	}

	g, err := LoadFile(path, name)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Put(name, fp, g); err != nil {
			s.log.Warn("graph cache write failed", zap.String("graph", name), zap.Error(err))
		}
	}
	return g, nil
}

func (s *Source) memo(key string) *graph.StreetGraph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded[key]
}

func (s *Source) remember(key string, g *graph.StreetGraph) {
	s.mu.Lock()
	s.loaded[key] = g
	s.mu.Unlock()
}

// LoadFile reads a graph from a JSON graph file or a TIGER roads shapefile
// (.shp or .zip).
func LoadFile(path, name string) (*graph.StreetGraph, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		g, err := graph.LoadFile(path)
		if err != nil {
			return nil, err
		}
		g.Name = name
		return g, nil
	case ".shp", ".zip":
		g, _, err := tiger.LoadRoads(path, name)
		return g, err
	default:
		return nil, eris.Errorf("network: unsupported graph file %s", path)
	}
}
