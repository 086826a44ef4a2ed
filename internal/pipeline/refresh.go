// Package pipeline runs a full refresh: per-area attribution and scoring on
// a bounded worker pool, then global classification and persistence.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/saferoute/internal/attribution"
	"github.com/sells-group/saferoute/internal/classify"
	"github.com/sells-group/saferoute/internal/graph"
	"github.com/sells-group/saferoute/internal/incident"
	"github.com/sells-group/saferoute/internal/metrics"
	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/routing"
	"github.com/sells-group/saferoute/internal/scoring"
	"github.com/sells-group/saferoute/internal/store"
)

// DefaultConcurrency bounds the worker pool when Options leaves it unset.
const DefaultConcurrency = 4

// AreaGraphs resolves the street graph of one community area.
type AreaGraphs interface {
	AreaGraph(ctx context.Context, area int) (*graph.StreetGraph, error)
}

// Options configures a Runner.
type Options struct {
	Concurrency int
	// Contexts defaults to model.RepresentativeContexts().
	Contexts []model.Context
	// Store receives the snapshot. A nil Store makes Refresh a dry run.
	Store   store.Store
	Metrics *metrics.Metrics
}

// Stats summarizes one refresh.
type Stats struct {
	Incidents    int `json:"incidents"`
	Attributed   int `json:"attributed"`
	MissingField int `json:"missing_field"`
	NoGraph      int `json:"no_graph"`
	Areas        int `json:"areas"`
	AreasSkipped int `json:"areas_skipped"`
	Nodes        int `json:"nodes"`
}

// Result is the outcome of a successful refresh.
type Result struct {
	Snapshot  *store.Snapshot
	Stats     Stats
	Persisted bool
	Duration  time.Duration
}

// Runner computes and persists score snapshots.
type Runner struct {
	graphs      AreaGraphs
	scorer      scoring.Scorer
	store       store.Store
	metrics     *metrics.Metrics
	concurrency int
	contexts    []model.Context
	log         *zap.Logger
}

// New creates a Runner.
func New(graphs AreaGraphs, scorer scoring.Scorer, opts Options) *Runner {
	conc := opts.Concurrency
	if conc <= 0 {
		conc = DefaultConcurrency
	}
	contexts := opts.Contexts
	if len(contexts) == 0 {
		contexts = model.RepresentativeContexts()
	}
	return &Runner{
		graphs:      graphs,
		scorer:      scorer,
		store:       opts.Store,
		metrics:     opts.Metrics,
		concurrency: conc,
		contexts:    contexts,
		log:         zap.L().With(zap.String("component", "pipeline")),
	}
}

// areaResult is one worker's output. Skipped areas carry only counts.
type areaResult struct {
	area       int
	graph      *graph.StreetGraph
	scores     map[model.Context]scoring.NodeScores
	attributed int
	missing    int
	noGraph    int
	skipped    bool
}

// Refresh scores incidents as of now for every context, classifies the
// pooled averages and saves the snapshot. On ErrEmptyDistribution nothing is
// saved, so the previous snapshot stays current.
func (r *Runner) Refresh(ctx context.Context, incidents []model.Incident, now time.Time) (*Result, error) {
	start := time.Now()
	byArea := incident.ByArea(incidents)
	codes := make([]int, 0, len(byArea))
	for code := range byArea {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	r.log.Info("pipeline: refresh starting",
		zap.Int("incidents", len(incidents)),
		zap.Int("areas", len(codes)),
		zap.Int("concurrency", r.concurrency),
	)

	// Each worker writes only its own slot.
	results := make([]areaResult, len(codes))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, code := range codes {
		g.Go(func() error {
			res, err := r.processArea(gCtx, code, byArea[code], now)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: refresh")
	}

	stats := Stats{Incidents: len(incidents), Areas: len(codes)}
	byContext := make(map[model.Context]scoring.ScoreMap, len(r.contexts))
	for _, c := range r.contexts {
		byContext[c] = make(scoring.ScoreMap)
	}
	graphs := make(map[int]*graph.StreetGraph, len(results))
	for _, res := range results {
		stats.Attributed += res.attributed
		stats.MissingField += res.missing
		stats.NoGraph += res.noGraph
		if res.skipped {
			stats.AreasSkipped++
			continue
		}
		graphs[res.area] = res.graph
		for c, nodes := range res.scores {
			if len(nodes) > 0 {
				byContext[c][res.area] = nodes
			}
		}
	}
	r.metrics.ObserveAttribution(stats.Attributed, stats.MissingField, stats.NoGraph)

	log := r.log.With(
		zap.Int("attributed", stats.Attributed),
		zap.Int("missing_field", stats.MissingField),
		zap.Int("no_graph", stats.NoGraph),
		zap.Int("areas_skipped", stats.AreasSkipped),
	)

	thresholds, err := classify.Classify(byContext)
	if err != nil {
		if eris.Is(err, classify.ErrEmptyDistribution) {
			log.Warn("pipeline: no scored nodes, keeping previous snapshot")
		}
		r.metrics.ObserveRefresh(time.Since(start), nil, false)
		return nil, eris.Wrap(err, "pipeline: classify")
	}

	avgs := classify.NodeAverages(byContext)
	for _, nodes := range avgs {
		stats.Nodes += len(nodes)
	}
	hotspots := classify.Hotspots(avgs)
	for i := range hotspots {
		if n, ok := graphs[hotspots[i].Area].Node(hotspots[i].NodeID); ok {
			hotspots[i].Location = n.Coordinate()
		}
	}

	res := &Result{
		Snapshot: &store.Snapshot{
			ID:         uuid.New(),
			ComputedAt: now,
			Scores:     byContext,
			Thresholds: thresholds,
			Hotspots:   hotspots,
		},
		Stats: stats,
	}

	if r.store != nil {
		if err := r.store.SaveSnapshot(ctx, res.Snapshot); err != nil {
			r.metrics.ObserveRefresh(time.Since(start), nil, false)
			return nil, eris.Wrap(err, "pipeline: save snapshot")
		}
		res.Persisted = true
	}

	res.Duration = time.Since(start)
	r.metrics.ObserveRefresh(res.Duration, nodeCounts(byContext), res.Persisted)
	log.Info("pipeline: refresh complete",
		zap.String("snapshot_id", res.Snapshot.ID.String()),
		zap.Int("nodes", stats.Nodes),
		zap.Float64("p25", thresholds.P25),
		zap.Float64("p75", thresholds.P75),
		zap.Float64("p90", thresholds.P90),
		zap.Bool("persisted", res.Persisted),
		zap.Duration("elapsed", res.Duration),
	)
	return res, nil
}

// processArea attributes one area's incidents once, then aggregates the
// shared attributed slice for every context.
func (r *Runner) processArea(ctx context.Context, code int, incs []model.Incident, now time.Time) (areaResult, error) {
	res := areaResult{area: code}
	log := r.log.With(zap.Int("area", code))

	g, err := r.graphs.AreaGraph(ctx, code)
	if eris.Is(err, routing.ErrUnknownArea) {
		log.Warn("pipeline: no street graph for area, skipping", zap.Int("incidents", len(incs)))
		res.skipped, res.noGraph = true, len(incs)
		return res, nil
	}
	if err != nil {
		return res, eris.Wrapf(err, "pipeline: area %d graph", code)
	}

	attr, err := attribution.Attribute(incs, g)
	if eris.Is(err, attribution.ErrEmptyGraph) {
		log.Warn("pipeline: empty street graph, skipping", zap.Int("incidents", len(incs)))
		res.skipped, res.noGraph = true, len(incs)
		return res, nil
	}
	if err != nil {
		return res, eris.Wrapf(err, "pipeline: area %d attribution", code)
	}
	res.graph = g
	res.attributed = len(attr.Incidents)
	res.missing = attr.Dropped

	res.scores = make(map[model.Context]scoring.NodeScores, len(r.contexts))
	for _, c := range r.contexts {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrapf(err, "pipeline: area %d", code)
		}
		res.scores[c] = r.scorer.Aggregate(attr.Incidents, scoring.Query{Context: c, Now: now})
	}
	log.Debug("pipeline: area scored",
		zap.Int("attributed", res.attributed),
		zap.Int("missing_field", res.missing),
	)
	return res, nil
}

func nodeCounts(byContext map[model.Context]scoring.ScoreMap) map[string]int {
	out := make(map[string]int, len(byContext))
	for c, m := range byContext {
		n := 0
		for _, nodes := range m {
			n += len(nodes)
		}
		out[c.String()] = n
	}
	return out
}
