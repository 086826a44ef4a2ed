package routing

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/saferoute/internal/classify"
	"github.com/sells-group/saferoute/internal/graph"
	"github.com/sells-group/saferoute/internal/metrics"
	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/scoring"
)

// Sentinel errors.
var (
	ErrUnboundedRegionTooLarge = eris.New("routing: unbounded region too large")
	ErrUnknownArea             = eris.New("routing: unknown area")
)

// DefaultWaypointBatch is the largest waypoint group the directions
// collaborator accepts.
const DefaultWaypointBatch = 23

// Unbounded is the Area value for a request not restricted to one area.
const Unbounded = 0

// Request asks for a route between two coordinates.
type Request struct {
	Origin      model.Coordinate `json:"origin"`
	Destination model.Coordinate `json:"destination"`
	Profile     Profile          `json:"profile"`
	// Area restricts routing to one community area; Unbounded crops the
	// city graph around both endpoints.
	Area int `json:"area"`
}

// Route is the chosen path. Cost is the adjusted length used for steering;
// Length is the real distance in meters for display.
type Route struct {
	Profile     Profile            `json:"profile"`
	Nodes       []int64            `json:"nodes"`
	Coordinates []model.Coordinate `json:"coordinates"`
	Cost        float64            `json:"cost"`
	Length      float64            `json:"length"`
}

// WaypointBatches splits the route coordinates into consecutive groups of
// at most n. n ≤ 0 uses DefaultWaypointBatch.
func (r Route) WaypointBatches(n int) [][]model.Coordinate {
	if n <= 0 {
		n = DefaultWaypointBatch
	}
	var out [][]model.Coordinate
	for start := 0; start < len(r.Coordinates); start += n {
		end := start + n
		if end > len(r.Coordinates) {
			end = len(r.Coordinates)
		}
		batch := make([]model.Coordinate, end-start)
		copy(batch, r.Coordinates[start:end])
		out = append(out, batch)
	}
	return out
}

// GraphProvider supplies shared, read-only street graphs. Callers must not
// modify the returned graphs.
type GraphProvider interface {
	AreaGraph(ctx context.Context, area int) (*graph.StreetGraph, error)
	RegionGraph(ctx context.Context, center model.Coordinate, radius float64) (*graph.StreetGraph, error)
}

// Region returns the disk an unbounded request is cropped to: centered on
// the spherical midpoint with radius RegionFactor × endpoint distance.
func Region(origin, dest model.Coordinate, cfg Config) (model.Coordinate, float64, error) {
	center := graph.Midpoint(origin, dest)
	radius := cfg.RegionFactor * graph.HaversineWithRadius(origin, dest, cfg.RegionEarthRadius)
	if cfg.MaxRegionMeters > 0 && radius > cfg.MaxRegionMeters {
		return center, radius, eris.Wrapf(ErrUnboundedRegionTooLarge,
			"routing: radius %.0fm exceeds %.0fm", radius, cfg.MaxRegionMeters)
	}
	return center, radius, nil
}

// Router answers route requests against shared graphs and score snapshots.
// Each request weighs a private graph copy; shared state is never mutated.
type Router struct {
	graphs  GraphProvider
	cfg     Config
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewRouter returns a router. m may be nil.
func NewRouter(graphs GraphProvider, cfg Config, m *metrics.Metrics) *Router {
	return &Router{
		graphs:  graphs,
		cfg:     cfg,
		metrics: m,
		log:     zap.L().With(zap.String("component", "routing")),
	}
}

// Route resolves the working graph for req, weighs it by tier and returns
// the cheapest path. Failures are returned, never an empty route.
func (r *Router) Route(ctx context.Context, req Request, scores scoring.ScoreMap, th classify.Thresholds, extreme bool) (Route, error) {
	start := time.Now()
	route, err := r.route(ctx, req, scores, th, extreme)
	r.metrics.ObserveRoute(string(req.Profile), time.Since(start), failReason(err))
	if err != nil {
		r.log.Warn("route failed",
			zap.String("profile", string(req.Profile)),
			zap.Int("area", req.Area),
			zap.Error(err),
		)
		return Route{}, err
	}
	r.log.Debug("route computed",
		zap.String("profile", string(req.Profile)),
		zap.Int("nodes", len(route.Nodes)),
		zap.Float64("length_m", route.Length),
		zap.Float64("cost", route.Cost),
	)
	return route, nil
}

func (r *Router) route(ctx context.Context, req Request, scores scoring.ScoreMap, th classify.Thresholds, extreme bool) (Route, error) {
	var (
		g     *graph.StreetGraph
		nodes scoring.NodeScores
		err   error
	)
	if req.Area == Unbounded {
		center, radius, rerr := Region(req.Origin, req.Destination, r.cfg)
		if rerr != nil {
			return Route{}, rerr
		}
		if g, err = r.graphs.RegionGraph(ctx, center, radius); err != nil {
			return Route{}, eris.Wrap(err, "routing: region graph")
		}
		nodes = scores.Combined()
	} else {
		if g, err = r.graphs.AreaGraph(ctx, req.Area); err != nil {
			return Route{}, eris.Wrapf(err, "routing: area %d graph", req.Area)
		}
		nodes = scores[req.Area]
	}
	return RouteOn(ctx, g, req, nodes, th, extreme, r.cfg)
}

// RouteOn routes req over g directly. g is cloned before weighting.
func RouteOn(ctx context.Context, g *graph.StreetGraph, req Request, scores scoring.NodeScores, th classify.Thresholds, extreme bool, cfg Config) (Route, error) {
	if g == nil || g.NumNodes() == 0 {
		return Route{}, eris.Wrap(ErrNoPathFound, "routing: empty graph")
	}
	profile := req.Profile
	if profile == "" {
		profile = ProfileDefault
	}
	stages, ok := cfg.Policy[profile]
	if !ok && profile != ProfileDefault {
		return Route{}, eris.Errorf("routing: no policy for profile %q", profile)
	}

	idx := graph.NewIndex(g)
	src, _ := idx.Nearest(req.Origin)
	dst, _ := idx.Nearest(req.Destination)

	tiers := Classify(g, scores, th, extreme, cfg.ExtremeScale)
	weighted := Weigh(g, tiers, stages)

	p, err := ShortestPath(ctx, weighted, src.ID, dst.ID)
	if err != nil {
		return Route{}, err
	}

	out := Route{
		Profile:     profile,
		Nodes:       p.Nodes,
		Coordinates: make([]model.Coordinate, 0, len(p.Nodes)),
		Cost:        p.Cost,
	}
	for _, id := range p.Nodes {
		n, _ := g.Node(id)
		out.Coordinates = append(out.Coordinates, n.Coordinate())
	}
	for _, ei := range p.Edges {
		out.Length += g.Edge(ei).Length
	}
	return out, nil
}

func failReason(err error) string {
	switch {
	case err == nil:
		return ""
	case eris.Is(err, ErrNoPathFound):
		return "no_path"
	case eris.Is(err, ErrUnboundedRegionTooLarge):
		return "region_too_large"
	case eris.Is(err, ErrUnknownArea):
		return "unknown_area"
	case eris.Is(err, context.DeadlineExceeded), eris.Is(err, context.Canceled):
		return "deadline"
	default:
		return "other"
	}
}
