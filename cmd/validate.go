package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/urban-health-lab/trauma-desert-cli/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate <run-id|latest>",
	Short: "Show a run's validation report",
	Long:  "Prints the stored data-quality checks for a run. Exits non-zero if any check failed.",
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

		checks, err := st.GetReport(ctx, runID)
		if err != nil {
			return err
		}
		if len(checks) == 0 {
			return eris.Errorf("no validation report for run %s", runID)
		}

		report := validate.Report{Checks: checks}
		formatReport(os.Stdout, report)

		if report.Failed() {
			return eris.Errorf("run %s has validation failures", runID)
		}
		return nil
	},
}

func formatReport(out io.Writer, report validate.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATUS\tCATEGORY\tCHECK\tMESSAGE")
	for _, c := range report.Checks {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Status, c.Category, c.Name, c.Message)
	}
	_, _ = fmt.Fprintf(w, "\n%s\n", report.Summary())
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
