package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/saferoute/internal/area"
	"github.com/sells-group/saferoute/internal/classify"
	"github.com/sells-group/saferoute/internal/metrics"
	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/routing"
	"github.com/sells-group/saferoute/internal/scoring"
	"github.com/sells-group/saferoute/internal/store"
)

var (
	routeFrom        string
	routeTo          string
	routeProfile     string
	routeArea        string
	routeTemperature float64
	routeAt          string
	routeFormat      string
	routeBatch       int
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Find a route that avoids risky streets",
	Long:  "Weights the street graph by the latest risk snapshot for the current season and time of day, then finds the cheapest path.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("route"); err != nil {
			return err
		}
		if routeFormat != "table" && routeFormat != "json" {
			return eris.Errorf("--format must be table or json, got %q", routeFormat)
		}

		origin, err := parseCoordinate(routeFrom)
		if err != nil {
			return err
		}
		dest, err := parseCoordinate(routeTo)
		if err != nil {
			return err
		}
		profile, err := routing.ParseProfile(routeProfile)
		if err != nil {
			return err
		}
		areas, err := area.Load(cfg.Data.Areas)
		if err != nil {
			return err
		}
		code, err := parseArea(areas, routeArea)
		if err != nil {
			return err
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		at := time.Now()
		if routeAt != "" {
			if at, err = time.Parse(time.RFC3339, routeAt); err != nil {
				return eris.Wrap(err, "parse --at")
			}
		}
		rc := cfg.RouterConfig()
		extreme := cmd.Flags().Changed("temperature") && routing.IsExtreme(routeTemperature, rc)

		ctx := cmd.Context()
		m := metrics.New()
		defer flushMetrics(m)

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rctx := model.ContextAt(at.In(loc))
		snap, err := loadRiskSnapshot(ctx, st, rctx)
		if err != nil {
			return err
		}

		src, closeSrc, err := initSource(areas, m)
		if err != nil {
			return err
		}
		defer closeSrc()

		if cfg.Routing.TimeoutSecs > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Routing.TimeoutSecs)*time.Second)
			defer cancel()
		}

		req := routing.Request{Origin: origin, Destination: dest, Profile: profile, Area: code}
		r, err := routing.NewRouter(src, rc, m).Route(ctx, req, snap.scores, snap.thresholds, extreme)
		if err != nil {
			return err
		}

		out := routeOutput{
			Request:    req,
			Context:    rctx.String(),
			Extreme:    extreme,
			SnapshotID: snap.id,
			Route:      r,
			Batches:    r.WaypointBatches(routeBatch),
		}
		if routeFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), out)
		}
		formatRoute(cmd.OutOrStdout(), out)
		return nil
	},
}

// riskSnapshot is what a route needs from the store.
type riskSnapshot struct {
	id         string
	scores     scoring.ScoreMap
	thresholds classify.Thresholds
}

// loadRiskSnapshot reads the latest scores for c. Before the first
// successful refresh it falls back to no scores and the configured
// thresholds.
func loadRiskSnapshot(ctx context.Context, st store.Store, c model.Context) (riskSnapshot, error) {
	rec, err := st.LatestThresholds(ctx)
	if eris.Is(err, store.ErrNoSnapshot) {
		zap.L().Warn("no risk snapshot yet, using fallback thresholds")
		return riskSnapshot{scores: scoring.ScoreMap{}, thresholds: cfg.Routing.Fallback}, nil
	}
	if err != nil {
		return riskSnapshot{}, err
	}
	scores, err := st.LoadScores(ctx, c)
	if err != nil {
		return riskSnapshot{}, err
	}
	return riskSnapshot{id: rec.SnapshotID, scores: scores, thresholds: rec.Thresholds}, nil
}

func init() {
	routeCmd.Flags().StringVar(&routeFrom, "from", "", "origin as lat,lng (required)")
	routeCmd.Flags().StringVar(&routeTo, "to", "", "destination as lat,lng (required)")
	routeCmd.Flags().StringVar(&routeProfile, "profile", "default", "default, safer or safest")
	routeCmd.Flags().StringVar(&routeArea, "area", "", "community area name or code (empty: unbounded)")
	routeCmd.Flags().Float64Var(&routeTemperature, "temperature", 0, "current temperature in °F")
	routeCmd.Flags().StringVar(&routeAt, "at", "", "departure time, RFC3339 (default: now)")
	routeCmd.Flags().StringVar(&routeFormat, "format", "table", "output format: table or json")
	routeCmd.Flags().IntVar(&routeBatch, "batch", routing.DefaultWaypointBatch, "waypoints per directions batch")
	_ = routeCmd.MarkFlagRequired("from")
	_ = routeCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(routeCmd)
}
