package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/saferoute/internal/area"
	"github.com/sells-group/saferoute/internal/metrics"
	"github.com/sells-group/saferoute/internal/pipeline"
	"github.com/sells-group/saferoute/internal/scoring"
	"github.com/sells-group/saferoute/internal/store"
)

var (
	refreshIncidents string
	refreshRecent    string
	refreshNow       string
	refreshDryRun    bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute node scores and risk thresholds",
	Long:  "Attributes incidents to street nodes, scores them for every representative context, classifies the pooled averages and saves the snapshot.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		m := metrics.New()
		defer flushMetrics(m)

		now := time.Now()
		if refreshNow != "" {
			t, err := time.Parse(time.RFC3339, refreshNow)
			if err != nil {
				return eris.Wrap(err, "parse --now")
			}
			now = t
		}

		if refreshIncidents != "" {
			cfg.Data.Incidents = refreshIncidents
		}
		if refreshRecent != "" {
			cfg.Data.Recent = refreshRecent
		}
		if err := cfg.Validate("refresh"); err != nil {
			return err
		}

		incs, err := loadIncidents(cfg.Data.Incidents, cfg.Data.Recent)
		if err != nil {
			return err
		}

		areas, err := area.Load(cfg.Data.Areas)
		if err != nil {
			return err
		}
		weights, err := scoring.LoadWeights(cfg.Data.Weights)
		if err != nil {
			return err
		}
		src, closeSrc, err := initSource(areas, m)
		if err != nil {
			return err
		}
		defer closeSrc()

		var st store.Store
		if !refreshDryRun {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		runner := pipeline.New(src, scoring.NewScorer(weights, cfg.ScoringParams()), pipeline.Options{
			Concurrency: cfg.Pipeline.MaxConcurrentAreas,
			Store:       st,
			Metrics:     m,
		})
		res, err := runner.Refresh(ctx, incs, now)
		if err != nil {
			return err
		}

		zap.L().Info("refresh complete",
			zap.String("snapshot_id", res.Snapshot.ID.String()),
			zap.Bool("dry_run", refreshDryRun),
			zap.Int("nodes", res.Stats.Nodes),
			zap.Int("hotspots", len(res.Snapshot.Hotspots)),
		)
		return writeJSON(cmd.OutOrStdout(), refreshSummary{
			SnapshotID: res.Snapshot.ID.String(),
			ComputedAt: res.Snapshot.ComputedAt,
			Persisted:  res.Persisted,
			Stats:      res.Stats,
			Thresholds: res.Snapshot.Thresholds,
		})
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshIncidents, "incidents", "", "incident CSV or XLSX file (overrides data.incidents)")
	refreshCmd.Flags().StringVar(&refreshRecent, "recent", "", "recent incidents merged over the main file (overrides data.recent)")
	refreshCmd.Flags().StringVar(&refreshNow, "now", "", "reference time for decay, RFC3339 (default: current time)")
	refreshCmd.Flags().BoolVar(&refreshDryRun, "dry-run", false, "compute without saving the snapshot")
	rootCmd.AddCommand(refreshCmd)
}
