package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/saferoute/internal/graph"
)

const testConfig = `store:
  driver: sqlite
  database_url: saferoute.db
data:
  graphs_dir: graphs
  timezone: UTC
log:
  level: error
  format: json
`

// Diamond graph: A(1)–D(4)–B(2) is 10 m, A(1)–C(3)–B(2) is 16 m. Every
// incident lands on D.
func setupWorkspace(t *testing.T) {
	t.Helper()
	chdirTemp(t)

	require.NoError(t, os.WriteFile("config.yaml", []byte(testConfig), 0o644))
	require.NoError(t, os.Mkdir("graphs", 0o755))

	g := graph.New("ROGERS PARK")
	for _, n := range []graph.Node{
		{ID: 1, Lat: 41.80, Lng: -87.60},
		{ID: 2, Lat: 41.80, Lng: -87.58},
		{ID: 3, Lat: 41.81, Lng: -87.59},
		{ID: 4, Lat: 41.80, Lng: -87.59},
	} {
		require.NoError(t, g.AddNode(n))
	}
	for _, e := range []graph.Edge{
		{From: 1, To: 4, Length: 5},
		{From: 4, To: 2, Length: 5},
		{From: 1, To: 3, Length: 8},
		{From: 3, To: 2, Length: 8},
	} {
		require.NoError(t, g.AddEdge(e))
	}
	f, err := os.Create(filepath.Join("graphs", "1.json"))
	require.NoError(t, err)
	require.NoError(t, graph.WriteJSON(f, g))
	require.NoError(t, f.Close())

	csv := strings.Join([]string{
		"ID,Date,Primary Type,Community Area,Latitude,Longitude",
		"101,06/15/2024 10:00:00 PM,BATTERY,1,41.8001,-87.5901",
		"102,06/20/2024 11:30:00 PM,ROBBERY,1,41.7999,-87.5899",
		"103,06/21/2024 09:15:00 PM,ASSAULT,1,41.8000,-87.5900",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile("incidents.csv", []byte(csv), 0o644))
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func routeJSON(t *testing.T, profile string) routeOutput {
	t.Helper()
	raw := run(t, "route",
		"--from", "41.80,-87.60",
		"--to", "41.80,-87.58",
		"--area", "1",
		"--profile", profile,
		"--at", "2024-07-01T22:00:00Z",
		"--format", "json",
	)
	var out routeOutput
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestRefreshThenRoute(t *testing.T) {
	setupWorkspace(t)

	before := routeJSON(t, "safer")
	assert.Empty(t, before.SnapshotID)
	assert.Equal(t, []int64{1, 4, 2}, before.Route.Nodes)

	raw := run(t, "refresh", "--incidents", "incidents.csv", "--now", "2024-07-01T22:00:00Z")
	var summary refreshSummary
	require.NoError(t, json.Unmarshal([]byte(raw), &summary))
	assert.True(t, summary.Persisted)
	assert.Equal(t, 3, summary.Stats.Incidents)
	assert.Equal(t, 3, summary.Stats.Attributed)
	assert.Equal(t, 1, summary.Stats.Nodes)

	def := routeJSON(t, "default")
	assert.Equal(t, summary.SnapshotID, def.SnapshotID)
	assert.Equal(t, "summer/night", def.Context)
	assert.Equal(t, []int64{1, 4, 2}, def.Route.Nodes)
	assert.InDelta(t, 10, def.Route.Cost, 1e-9)

	safer := routeJSON(t, "safer")
	assert.Equal(t, []int64{1, 3, 2}, safer.Route.Nodes)
	assert.InDelta(t, 16, safer.Route.Cost, 1e-9)
	assert.InDelta(t, 16, safer.Route.Length, 1e-9)

	th := run(t, "thresholds", "--format", "table")
	assert.Contains(t, th, "SOURCE    snapshot")
	assert.Contains(t, th, summary.SnapshotID)
}
