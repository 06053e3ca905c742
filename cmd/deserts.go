package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/urban-health-lab/trauma-desert-cli/internal/deserts"
)

var desertsLimit int

var desertsCmd = &cobra.Command{
	Use:   "deserts <run-id|latest>",
	Short: "Rank a run's trauma deserts",
	Long:  "Ranks the high-violence, poor-access tracts of a completed run by a blended severity score.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runID, err := resolveRunID(ctx, st, args[0])
		if err != nil {
			return err
		}

		tracts, err := st.GetTracts(ctx, runID)
		if err != nil {
			return err
		}

		rankings := deserts.Rank(tracts)
		if desertsLimit > 0 && len(rankings) > desertsLimit {
			rankings = rankings[:desertsLimit]
		}
		formatRankings(os.Stdout, rankings)
		return nil
	},
}

func formatRankings(out io.Writer, rankings []deserts.Ranking) {
	if len(rankings) == 0 {
		fmt.Fprintln(out, "No trauma deserts in this run.")
		return
	}

	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tGEOID\tTRACT\tSHOOTINGS\tPER SQ MI/YR\tMINUTES\tNEAREST CENTER\tPOPULATION\tSCORE")
	for _, r := range rankings {
		_, _ = p.Fprintf(w, "%d\t%s\t%s\t%d\t%.1f\t%d\t%s\t%d\t%.3f\n",
			r.Rank, r.GEOID, r.Name, r.TotalIncidents, r.AnnualDensityPerSqMi,
			r.TimeToNearest, r.NearestFacility, r.TotalPopulation, r.Score)
	}
	_ = w.Flush()
}

func init() {
	desertsCmd.Flags().IntVar(&desertsLimit, "limit", 0, "show only the top N deserts (0 = all)")
	rootCmd.AddCommand(desertsCmd)
}
