package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/saferoute/internal/area"
	"github.com/sells-group/saferoute/internal/graphcache"
	"github.com/sells-group/saferoute/internal/incident"
	"github.com/sells-group/saferoute/internal/metrics"
	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/network"
	"github.com/sells-group/saferoute/internal/routing"
	"github.com/sells-group/saferoute/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initSource builds the graph source. The returned close func releases the
// graph cache.
func initSource(areas area.Registry, m *metrics.Metrics) (*network.Source, func(), error) {
	var cache *graphcache.Cache
	if cfg.Cache.Dir != "" {
		c, err := graphcache.Open(cfg.Cache.Dir, cfg.CacheTTL())
		if err != nil {
			return nil, nil, err
		}
		cache = c
	}
	src := network.NewSource(network.Options{
		Dir:      cfg.Data.GraphsDir,
		CityPath: cfg.Data.CityGraph,
		Areas:    areas,
		Cache:    cache,
		Metrics:  m,
	})
	return src, func() { _ = cache.Close() }, nil
}

// loadIncidents reads the main incident file and merges the recent file
// when one is configured.
func loadIncidents(path, recent string) ([]model.Incident, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts := incident.Options{Location: loc}

	incs, stats, err := incident.Load(path, opts)
	if err != nil {
		return nil, err
	}
	if recent != "" {
		more, rs, err := incident.Load(recent, opts)
		if err != nil {
			return nil, err
		}
		stats.Add(rs)
		incs = incident.Merge(incs, more)
	}
	zap.L().Info("incidents loaded",
		zap.Int("rows", stats.Rows),
		zap.Int("loaded", len(incs)),
		zap.Int("missing_field", stats.MissingField),
		zap.Int("invalid", stats.Invalid),
	)
	return incs, nil
}

func flushMetrics(m *metrics.Metrics) {
	if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		zap.L().Warn("metrics textfile write failed", zap.Error(err))
	}
}

// parseCoordinate parses "lat,lng".
func parseCoordinate(s string) (model.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return model.Coordinate{}, eris.Errorf("coordinate %q: want lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.Coordinate{}, eris.Wrapf(err, "coordinate %q: latitude", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.Coordinate{}, eris.Wrapf(err, "coordinate %q: longitude", s)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return model.Coordinate{}, eris.Errorf("coordinate %q: out of range", s)
	}
	return model.Coordinate{Lat: lat, Lng: lng}, nil
}

// parseArea accepts an area code or name. Empty means unbounded.
func parseArea(areas area.Registry, s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return routing.Unbounded, nil
	}
	if code, err := strconv.Atoi(s); err == nil {
		if _, ok := areas.Name(code); !ok {
			return 0, eris.Wrapf(routing.ErrUnknownArea, "area %d", code)
		}
		return code, nil
	}
	code, ok := areas.Code(s)
	if !ok {
		return 0, eris.Wrapf(routing.ErrUnknownArea, "area %q", s)
	}
	return code, nil
}
