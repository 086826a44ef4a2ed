package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/saferoute/internal/classify"
	"github.com/sells-group/saferoute/internal/routing"
	"github.com/sells-group/saferoute/internal/scoring"
	"github.com/sells-group/saferoute/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Routing  RoutingConfig  `yaml:"routing" mapstructure:"routing"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the snapshot database.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// DataConfig locates input files.
type DataConfig struct {
	Incidents string `yaml:"incidents" mapstructure:"incidents"`
	Recent    string `yaml:"recent" mapstructure:"recent"`
	GraphsDir string `yaml:"graphs_dir" mapstructure:"graphs_dir"`
	CityGraph string `yaml:"city_graph" mapstructure:"city_graph"`
	Weights   string `yaml:"weights" mapstructure:"weights"`
	Areas     string `yaml:"areas" mapstructure:"areas"`
	// Timezone applies to incident timestamps without an offset.
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// ScoringConfig holds the contextual weighting constants.
type ScoringConfig struct {
	DecayBase      float64 `yaml:"decay_base" mapstructure:"decay_base"`
	MatchFactor    float64 `yaml:"match_factor" mapstructure:"match_factor"`
	MismatchFactor float64 `yaml:"mismatch_factor" mapstructure:"mismatch_factor"`
}

// RoutingConfig holds the multiplier chains and routing limits.
type RoutingConfig struct {
	Safer           []routing.Stage     `yaml:"safer" mapstructure:"safer"`
	Safest          []routing.Stage     `yaml:"safest" mapstructure:"safest"`
	ColdF           float64             `yaml:"cold_f" mapstructure:"cold_f"`
	HotF            float64             `yaml:"hot_f" mapstructure:"hot_f"`
	ExtremeScale    float64             `yaml:"extreme_scale" mapstructure:"extreme_scale"`
	RegionFactor    float64             `yaml:"region_factor" mapstructure:"region_factor"`
	MaxRegionMeters float64             `yaml:"max_region_meters" mapstructure:"max_region_meters"`
	TimeoutSecs     int                 `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Fallback        classify.Thresholds `yaml:"fallback" mapstructure:"fallback"`
}

// PipelineConfig configures the refresh worker pool.
type PipelineConfig struct {
	MaxConcurrentAreas int `yaml:"max_concurrent_areas" mapstructure:"max_concurrent_areas"`
}

// CacheConfig configures the parsed-graph cache. An empty Dir disables it.
type CacheConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// MetricsConfig configures the node-exporter textfile output.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SAFEROUTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	params := scoring.DefaultParams()
	rc := routing.DefaultConfig()
	fb := classify.Fallback()
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "saferoute.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("data.incidents", "")
	v.SetDefault("data.recent", "")
	v.SetDefault("data.graphs_dir", "data/graphs")
	v.SetDefault("data.city_graph", "")
	v.SetDefault("data.weights", "")
	v.SetDefault("data.areas", "")
	v.SetDefault("data.timezone", "America/Chicago")
	v.SetDefault("scoring.decay_base", params.DecayBase)
	v.SetDefault("scoring.match_factor", params.MatchFactor)
	v.SetDefault("scoring.mismatch_factor", params.MismatchFactor)
	v.SetDefault("routing.safer", stagesDefault(rc.Policy[routing.ProfileSafer]))
	v.SetDefault("routing.safest", stagesDefault(rc.Policy[routing.ProfileSafest]))
	v.SetDefault("routing.cold_f", rc.ColdF)
	v.SetDefault("routing.hot_f", rc.HotF)
	v.SetDefault("routing.extreme_scale", rc.ExtremeScale)
	v.SetDefault("routing.region_factor", rc.RegionFactor)
	v.SetDefault("routing.max_region_meters", rc.MaxRegionMeters)
	v.SetDefault("routing.timeout_secs", 30)
	v.SetDefault("routing.fallback.p25", fb.P25)
	v.SetDefault("routing.fallback.p75", fb.P75)
	v.SetDefault("routing.fallback.p90", fb.P90)
	v.SetDefault("pipeline.max_concurrent_areas", 8)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.ttl_hours", 168)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func stagesDefault(stages []routing.Stage) []map[string]any {
	out := make([]map[string]any, len(stages))
	for i, s := range stages {
		out[i] = map[string]any{"tier": string(s.Tier), "factor": s.Factor}
	}
	return out
}

// ScoringParams returns the scoring constants.
func (c *Config) ScoringParams() scoring.Params {
	return scoring.Params{
		DecayBase:      c.Scoring.DecayBase,
		MatchFactor:    c.Scoring.MatchFactor,
		MismatchFactor: c.Scoring.MismatchFactor,
	}
}

// RouterConfig returns the routing settings.
func (c *Config) RouterConfig() routing.Config {
	rc := routing.DefaultConfig()
	rc.Policy = routing.Policy{
		routing.ProfileDefault: nil,
		routing.ProfileSafer:   c.Routing.Safer,
		routing.ProfileSafest:  c.Routing.Safest,
	}
	rc.ColdF = c.Routing.ColdF
	rc.HotF = c.Routing.HotF
	rc.ExtremeScale = c.Routing.ExtremeScale
	rc.RegionFactor = c.Routing.RegionFactor
	rc.MaxRegionMeters = c.Routing.MaxRegionMeters
	return rc
}

// CacheTTL returns the graph cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// Location resolves Data.Timezone. Empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Data.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Data.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: load timezone %q", c.Data.Timezone)
	}
	return loc, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
