package cmd

import (
	"fmt"
	"time"

	"github.com/lehigh-university-libraries/attendance/internal/backend"
	"github.com/lehigh-university-libraries/attendance/internal/history"
	"github.com/lehigh-university-libraries/attendance/internal/models"
	"github.com/lehigh-university-libraries/attendance/internal/tracker"
	"github.com/spf13/cobra"
)

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var exportPath string
	var fromPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent attendance records",
		Long: `Fetches the attendance list from the service (or reads an exported file)
and prints the 10 most recent records. All records can be exported to YAML
or Parquet.`,
		Example: `  # Show the latest records from the service
  attendance history

  # Export everything the service returned
  attendance history --export attendance.parquet

  # Show a previous export
  attendance history --from attendance.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []models.AttendanceRecord

			if fromPath != "" {
				imported, err := history.Import(fromPath)
				if err != nil {
					return err
				}
				records = imported
			} else {
				cfg, err := flags.loadConfig()
				if err != nil {
					return err
				}
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid configuration: %w", err)
				}

				tr := tracker.New(tracker.Options{
					Backend: backend.NewClient(cfg.BackendURL, cfg.HTTPTimeout),
				})
				defer tr.Close()

				if err := tr.LoadRecords(cmd.Context()); err != nil {
					return err
				}
				records = tr.Records()
			}

			fmt.Fprint(cmd.OutOrStdout(), history.Text(history.Render(records, time.Local)))

			if exportPath != "" {
				if err := history.Export(exportPath, records); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", len(records), exportPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&exportPath, "export", "", "Write all records to a .yaml or .parquet file")
	cmd.Flags().StringVar(&fromPath, "from", "", "Read records from a .yaml or .parquet export instead of the service")

	return cmd
}
