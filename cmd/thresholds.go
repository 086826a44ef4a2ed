package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/saferoute/internal/store"
)

var thresholdsFormat string

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Show the latest risk thresholds and hotspots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("thresholds"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		out := thresholdsOutput{Source: "fallback", Thresholds: cfg.Routing.Fallback}
		rec, err := st.LatestThresholds(ctx)
		switch {
		case eris.Is(err, store.ErrNoSnapshot):
		case err != nil:
			return err
		default:
			out.Source = "snapshot"
			out.SnapshotID = rec.SnapshotID
			out.ComputedAt = &rec.ComputedAt
			out.Thresholds = rec.Thresholds
		}
		if out.Hotspots, err = st.LatestHotspots(ctx); err != nil {
			return err
		}

		if thresholdsFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), out)
		}
		formatThresholds(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	thresholdsCmd.Flags().StringVar(&thresholdsFormat, "format", "table", "output format: table or json")
	rootCmd.AddCommand(thresholdsCmd)
}
