// Package metrics exposes refresh and routing counters on a private
// Prometheus registry that commands flush to a node-exporter textfile.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"
)

// Metrics holds the collectors for one process.
type Metrics struct {
	Registry *prometheus.Registry

	IncidentsAttributed prometheus.Counter
	IncidentsSkipped    *prometheus.CounterVec
	NodesScored         *prometheus.GaugeVec
	RefreshDuration     prometheus.Histogram
	RefreshTimestamp    prometheus.Gauge
	RouteDuration       *prometheus.HistogramVec
	RouteFailures       *prometheus.CounterVec
	GraphCacheLookups   *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		IncidentsAttributed: f.NewCounter(prometheus.CounterOpts{
			Name: "saferoute_incidents_attributed_total",
			Help: "Incidents pinned to a street node",
		}),
		IncidentsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "saferoute_incidents_skipped_total",
			Help: "Incidents dropped before scoring, by reason",
		}, []string{"reason"}),
		NodesScored: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "saferoute_nodes_scored",
			Help: "Nodes with a non-empty score in the last refresh, by context",
		}, []string{"context"}),
		RefreshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "saferoute_refresh_duration_seconds",
			Help:    "Wall time of a full refresh",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		RefreshTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "saferoute_refresh_last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh",
		}),
		RouteDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "saferoute_route_duration_seconds",
			Help:    "Route computation latency, by profile",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"profile"}),
		RouteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "saferoute_route_failures_total",
			Help: "Failed route requests, by reason",
		}, []string{"reason"}),
		GraphCacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "saferoute_graph_cache_lookups_total",
			Help: "Street graph cache lookups, by result",
		}, []string{"result"}),
	}
}

// ObserveRoute records one route attempt. A nil receiver is a no-op.
func (m *Metrics) ObserveRoute(profile string, d time.Duration, failReason string) {
	if m == nil {
		return
	}
	m.RouteDuration.WithLabelValues(profile).Observe(d.Seconds())
	if failReason != "" {
		m.RouteFailures.WithLabelValues(failReason).Inc()
	}
}

// ObserveAttribution records how many incidents were pinned to nodes and
// how many were skipped, by reason. A nil receiver is a no-op.
func (m *Metrics) ObserveAttribution(attributed, missingField, noGraph int) {
	if m == nil {
		return
	}
	m.IncidentsAttributed.Add(float64(attributed))
	m.IncidentsSkipped.WithLabelValues("missing_field").Add(float64(missingField))
	m.IncidentsSkipped.WithLabelValues("no_graph").Add(float64(noGraph))
}

// ObserveRefresh records a finished refresh. nodes maps a context label to
// its scored node count. The success timestamp only moves when persisted is
// true. A nil receiver is a no-op.
func (m *Metrics) ObserveRefresh(d time.Duration, nodes map[string]int, persisted bool) {
	if m == nil {
		return
	}
	m.RefreshDuration.Observe(d.Seconds())
	for label, n := range nodes {
		m.NodesScored.WithLabelValues(label).Set(float64(n))
	}
	if persisted {
		m.RefreshTimestamp.SetToCurrentTime()
	}
}

// CacheLookup records a graph cache hit or miss. A nil receiver is a no-op.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.GraphCacheLookups.WithLabelValues(result).Inc()
}

// WriteTextfile writes the registry to path in the text exposition format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "metrics: create dir")
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return eris.Wrapf(err, "metrics: write %s", path)
	}
	return nil
}
