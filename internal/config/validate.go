package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the settings a command needs. Every problem is reported
// at once.
func (c *Config) Validate(command string) error {
	var errs []string
	add := func(msg string) { errs = append(errs, msg) }

	switch command {
	case "refresh":
		if c.Data.Incidents == "" {
			add("data.incidents is required")
		}
		if c.Data.GraphsDir == "" {
			add("data.graphs_dir is required")
		}
		if c.Pipeline.MaxConcurrentAreas < 1 || c.Pipeline.MaxConcurrentAreas > 64 {
			add("pipeline.max_concurrent_areas must be between 1 and 64")
		}
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateScoring()...)
	case "route":
		if c.Data.GraphsDir == "" && c.Data.CityGraph == "" {
			add("data.graphs_dir or data.city_graph is required")
		}
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateRouting()...)
	case "thresholds":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", command)
	}

	if c.Cache.TTLHours < 0 {
		add("cache.ttl_hours must be >= 0")
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	return errs
}

func (c *Config) validateScoring() []string {
	var errs []string
	s := c.Scoring
	if s.DecayBase <= 0 || s.DecayBase > 1 {
		errs = append(errs, "scoring.decay_base must be in (0, 1]")
	}
	if s.MatchFactor < 0 || s.MismatchFactor < 0 {
		errs = append(errs, "scoring match factors must be >= 0")
	}
	return errs
}

func (c *Config) validateRouting() []string {
	var errs []string
	r := c.Routing
	if err := c.RouterConfig().Policy.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if r.ColdF >= r.HotF {
		errs = append(errs, "routing.cold_f must be below routing.hot_f")
	}
	if r.ExtremeScale <= 0 {
		errs = append(errs, "routing.extreme_scale must be > 0")
	}
	if r.RegionFactor < 1 {
		errs = append(errs, "routing.region_factor must be >= 1")
	}
	if r.MaxRegionMeters < 0 {
		errs = append(errs, "routing.max_region_meters must be >= 0")
	}
	if r.TimeoutSecs < 0 {
		errs = append(errs, "routing.timeout_secs must be >= 0")
	}
	f := r.Fallback
	if !(f.P25 <= f.P75 && f.P75 <= f.P90) {
		errs = append(errs, "routing.fallback must satisfy p25 <= p75 <= p90")
	}
	return errs
}
