package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/openers/internal/leads"
	"github.com/sells-group/openers/internal/model"
	"github.com/sells-group/openers/internal/store"
)

var (
	resultsCompany string
	resultsRun     string
	resultsLimit   int
	resultsFormat  string
	resultsOutput  string
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List stored opening lines",
	Long: `Lists stored results, newest first. The default table view is for the
terminal; json, csv and xlsx export the full records.

Examples:
  openers results --run 3f2a9c1e --limit 20
  openers results --company "Acme Roofing" --format json
  openers results --format xlsx --output openers.xlsx`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListResults(ctx, store.ResultFilter{
			Company: resultsCompany,
			RunID:   resultsRun,
			Limit:   resultsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "results: list")
		}

		if resultsFormat == "table" || resultsFormat == "" {
			if len(list) == 0 {
				fmt.Fprintln(os.Stderr, "No results found.")
				return nil
			}
			formatResultsTable(os.Stdout, list)
			return nil
		}

		format, err := leads.ParseFormat(resultsFormat)
		if err != nil {
			return err
		}
		if resultsOutput != "" {
			return leads.ExportFile(resultsOutput, format, list)
		}
		return leads.Export(os.Stdout, format, list)
	},
}

func init() {
	resultsCmd.Flags().StringVar(&resultsCompany, "company", "", "filter by company name")
	resultsCmd.Flags().StringVar(&resultsRun, "run", "", "filter by run ID")
	resultsCmd.Flags().IntVar(&resultsLimit, "limit", 50, "max results to show")
	resultsCmd.Flags().StringVar(&resultsFormat, "format", "table", "output format: table, json, csv, xlsx")
	resultsCmd.Flags().StringVar(&resultsOutput, "output", "", "write the export to a file instead of stdout")
	rootCmd.AddCommand(resultsCmd)
}

// formatResultsTable writes one row per result to w.
func formatResultsTable(out io.Writer, list []model.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPANY\tTIER\tTYPE\tMODE\tLINE")
	_, _ = fmt.Fprintln(w, "--\t-------\t----\t----\t----\t----")
	for _, r := range list {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			clip(r.Company, 28),
			r.ConfidenceTier,
			r.ArtifactType,
			r.Mode,
			r.Line,
		)
	}
	_ = w.Flush()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
