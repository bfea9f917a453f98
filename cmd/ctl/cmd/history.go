package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jpfielding/conform.go/pkg/conform"
	"github.com/jpfielding/conform.go/pkg/util"
	"github.com/spf13/cobra"
)

// NewHistoryCmd lists recorded runs and the drift between the latest two.
func NewHistoryCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "show recorded runs and verdict drift",
		Long:  "Lists runs recorded with `run --db` and reports cases whose verdict changed between the two most recent runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			limit, _ := cmd.Flags().GetInt("limit")
			runID, _ := cmd.Flags().GetString("run")

			st, err := openStore(ctx, dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			w := cmd.OutOrStdout()
			if runID != "" {
				report, err := st.LoadReport(ctx, runID)
				if err != nil {
					return err
				}
				return report.WriteText(w)
			}

			runs, err := st.RecentRuns(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tFIXTURES\tTOTAL\tFAILED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", r.ID, r.StartedAt.Format(time.RFC3339), r.FixtureDir, r.Total, r.Failed)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(runs) < 2 {
				return nil
			}

			prev, err := st.LoadReport(ctx, runs[1].ID)
			if err != nil {
				return err
			}
			cur, err := st.LoadReport(ctx, runs[0].ID)
			if err != nil {
				return err
			}
			drift := conform.Diff(prev, cur)
			fmt.Fprintf(w, "\nDrift %s -> %s: %d case(s)\n", util.ShortID(prev.RunID), util.ShortID(cur.RunID), len(drift))
			for _, d := range drift {
				fmt.Fprintln(w, d.String())
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("db", "conform.db", "SQLite history database")
	pf.IntP("limit", "n", 10, "number of runs to list")
	pf.String("run", "", "print the stored report for this run id")
	return cmd
}
