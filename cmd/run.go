package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/urban-health-lab/trauma-desert-cli/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full analysis pipeline",
	Long:  "Loads incidents, boundaries, demographics, and isochrones, then cleans, assigns, aggregates, resolves transport times, classifies, validates, and ranks trauma deserts.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := pipeline.New(cfg, st).Run(ctx)
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", res.RunID)
		_, _ = p.Fprintf(w, "Incidents:\t%d raw, %d clean (%.1f%% retained)\n",
			res.Summary.RawIncidents, res.Summary.CleanIncidents, res.Summary.RetentionPct)
		_, _ = p.Fprintf(w, "Tracts:\t%d\n", res.Summary.Tracts)
		_, _ = p.Fprintf(w, "Trauma deserts:\t%d\n", res.Summary.TraumaDeserts)
		_, _ = p.Fprintf(w, "Beyond coverage:\t%d\n", res.Summary.BeyondCoverage)
		_, _ = fmt.Fprintf(w, "Validation:\t%s\n", res.Report.Summary())
		_ = w.Flush()

		if res.Report.Failed() {
			fmt.Fprintln(os.Stderr, "validation failures recorded; see the validation report")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
