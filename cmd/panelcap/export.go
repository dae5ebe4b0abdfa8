package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mscrnt/panelcap/pkg/db"
)

func newExportCommand(ctx *cliContext) *cobra.Command {
	var (
		panelKey string
		all      bool
		output   string
	)

	cmd := &cobra.Command{
		Use:   "export <csv|json|yaml>",
		Short: "Export stored panels",
		Long: `Export one stored panel, or every panel, to CSV, JSON or YAML.

CSV of a single panel is one Group, Field, Value row per field. CSV of all
panels is one row per panel with a column per field. YAML export is per
panel only.

Examples:
  panelcap export csv --panel 3 --out panel3.csv
  panelcap export json --all
  panelcap export yaml --panel 9b2c1f3e-1d2a-4c1e-9a57-1f8f0f1ad000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := db.ParseExportFormat(args[0])
			if err != nil {
				return err
			}
			if all == (panelKey != "") {
				return fmt.Errorf("exactly one of --panel or --all must be specified")
			}
			if all && format == db.ExportFormatYAML {
				return fmt.Errorf("yaml export requires --panel")
			}

			database, err := ctx.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			var panel *db.Panel
			if !all {
				if panel, err = resolvePanel(database, panelKey); err != nil {
					return err
				}
			}

			out, closeOut, err := createOutput(output, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			switch {
			case !all:
				err = database.Export(out, format, panel.ID)
			case format == db.ExportFormatCSV:
				err = database.ExportAllCSV(out)
			default:
				err = database.ExportAllJSON(out)
			}
			if closeErr := closeOut(); err == nil {
				err = closeErr
			}
			if err != nil {
				return fmt.Errorf("failed to export %s: %w", format, err)
			}

			if output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&panelKey, "panel", "", "Panel ID or parse ID to export")
	cmd.Flags().BoolVar(&all, "all", false, "Export all panels")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output file (default: stdout)")

	return cmd
}
