package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"vein-assessment/internal/export"
	"vein-assessment/internal/triage"
)

func newExportCommand(load loader) *cobra.Command {
	var (
		format string
		output string
		filter triage.ListFilter
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export assessment records",
		Long: `Export stored assessment records for offline review.

Formats:
  - csv: one row per assessment with headers
  - xlsx: the same columns as a spreadsheet
  - json: full records including photo analysis`,
		Example: `  veincheck export --format xlsx --output assessments.xlsx
  veincheck export --min-severity 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.FormatFor(format)
			if err != nil {
				return err
			}
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()

			repo, db, err := openRepository(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			recs, err := repo.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer file.Close()
				w = file
			}
			if err := export.Write(w, f, recs); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d assessments to %s\n", len(recs), output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "Export format (csv|xlsx|json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().IntVar(&filter.MinSeverity, "min-severity", 0, "Only export assessments at or above this level")
	cmd.Flags().StringVar(&filter.Variant, "variant", "", "Only export one questionnaire variant")
	cmd.Flags().StringVar(&filter.Location, "location", "", "Only export one city")
	return cmd
}
