package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"github.com/sells-group/saferoute/internal/classify"
	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/pipeline"
	"github.com/sells-group/saferoute/internal/routing"
)

type refreshSummary struct {
	SnapshotID string              `json:"snapshot_id"`
	ComputedAt time.Time           `json:"computed_at"`
	Persisted  bool                `json:"persisted"`
	Stats      pipeline.Stats      `json:"stats"`
	Thresholds classify.Thresholds `json:"thresholds"`
}

type routeOutput struct {
	Request    routing.Request      `json:"request"`
	Context    string               `json:"context"`
	Extreme    bool                 `json:"extreme"`
	SnapshotID string               `json:"snapshot_id,omitempty"`
	Route      routing.Route        `json:"route"`
	Batches    [][]model.Coordinate `json:"waypoint_batches"`
}

type thresholdsOutput struct {
	Source     string              `json:"source"`
	SnapshotID string              `json:"snapshot_id,omitempty"`
	ComputedAt *time.Time          `json:"computed_at,omitempty"`
	Thresholds classify.Thresholds `json:"thresholds"`
	Hotspots   []classify.Hotspot  `json:"hotspots"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatRoute(w io.Writer, out routeOutput) {
	area := "unbounded"
	if out.Request.Area != routing.Unbounded {
		area = fmt.Sprint(out.Request.Area)
	}
	snapshot := out.SnapshotID
	if snapshot == "" {
		snapshot = "(fallback thresholds)"
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "PROFILE\t%s\n", out.Route.Profile)
	fmt.Fprintf(tw, "AREA\t%s\n", area)
	fmt.Fprintf(tw, "CONTEXT\t%s\n", out.Context)
	fmt.Fprintf(tw, "EXTREME\t%t\n", out.Extreme)
	fmt.Fprintf(tw, "SNAPSHOT\t%s\n", snapshot)
	fmt.Fprintf(tw, "NODES\t%d\n", len(out.Route.Nodes))
	fmt.Fprintf(tw, "LENGTH\t%.0f m\n", out.Route.Length)
	fmt.Fprintf(tw, "COST\t%.0f\n", out.Route.Cost)
	tw.Flush()

	fmt.Fprintln(w)
	ids := make([]string, len(out.Route.Nodes))
	for i, id := range out.Route.Nodes {
		ids[i] = fmt.Sprint(id)
	}
	fmt.Fprintf(w, "PATH %s\n", strings.Join(ids, " → "))

	for i, batch := range out.Batches {
		pts := make([]string, len(batch))
		for j, c := range batch {
			pts[j] = fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
		}
		fmt.Fprintf(w, "BATCH %d %s\n", i+1, strings.Join(pts, " "))
	}
}

func formatThresholds(w io.Writer, out thresholdsOutput) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SOURCE\t%s\n", out.Source)
	if out.SnapshotID != "" {
		fmt.Fprintf(tw, "SNAPSHOT\t%s\n", out.SnapshotID)
	}
	if out.ComputedAt != nil {
		fmt.Fprintf(tw, "COMPUTED\t%s\n", out.ComputedAt.Format("2006-01-02 15:04"))
	}
	th := out.Thresholds
	fmt.Fprintf(tw, "P25\t%.4f\n", th.P25)
	fmt.Fprintf(tw, "P75\t%.4f\n", th.P75)
	fmt.Fprintf(tw, "P90\t%.4f\n", th.P90)
	fmt.Fprintf(tw, "MEAN\t%.4f\n", th.Mean)
	fmt.Fprintf(tw, "MIN\t%.4f\n", th.Min)
	fmt.Fprintf(tw, "MAX\t%.4f\n", th.Max)
	tw.Flush()

	if len(out.Hotspots) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AREA\tNODE\tSCORE\tLOCATION")
	for _, h := range out.Hotspots {
		fmt.Fprintf(tw, "%d\t%d\t%.2f\t%.6f,%.6f\n", h.Area, h.NodeID, h.Score, h.Location.Lat, h.Location.Lng)
	}
	tw.Flush()
}
