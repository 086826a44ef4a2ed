package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRoute(t *testing.T) {
	m := New()
	m.ObserveRoute("safer", 20*time.Millisecond, "")
	m.ObserveRoute("safer", 5*time.Millisecond, "no_path")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RouteFailures.WithLabelValues("no_path")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RouteDuration))
}

func TestNilReceiver(t *testing.T) {
	var m *Metrics
	m.ObserveRoute("default", time.Second, "x")
	m.CacheLookup(true)
	m.ObserveAttribution(1, 2, 3)
	m.ObserveRefresh(time.Second, map[string]int{"summer/night": 1}, true)
	assert.NoError(t, m.WriteTextfile("/nonexistent/metrics.prom"))
}

func TestCacheLookup(t *testing.T) {
	m := New()
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GraphCacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GraphCacheLookups.WithLabelValues("miss")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.IncidentsAttributed.Add(42)
	m.IncidentsSkipped.WithLabelValues("missing_field").Inc()

	path := filepath.Join(t.TempDir(), "textfile", "saferoute.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "saferoute_incidents_attributed_total 42")
	assert.Contains(t, string(data), `saferoute_incidents_skipped_total{reason="missing_field"} 1`)
}

func TestWriteTextfile_EmptyPath(t *testing.T) {
	assert.NoError(t, New().WriteTextfile(""))
}

func TestObserveAttribution(t *testing.T) {
	m := New()
	m.ObserveAttribution(10, 2, 3)
	m.ObserveAttribution(5, 0, 0)
	assert.Equal(t, 15.0, testutil.ToFloat64(m.IncidentsAttributed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IncidentsSkipped.WithLabelValues("missing_field")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IncidentsSkipped.WithLabelValues("no_graph")))
}

func TestObserveRefresh(t *testing.T) {
	m := New()
	m.ObserveRefresh(3*time.Second, map[string]int{"summer/night": 4, "winter/morning": 2}, false)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.NodesScored.WithLabelValues("summer/night")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RefreshTimestamp))

	m.ObserveRefresh(time.Second, nil, true)
	assert.Greater(t, testutil.ToFloat64(m.RefreshTimestamp), 0.0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.RefreshDuration))
}
