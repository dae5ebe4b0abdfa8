package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mscrnt/panelcap/pkg/db"
	"github.com/mscrnt/panelcap/pkg/report"
)

func newReportCommand(ctx *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate panel review sheets",
		Long:  "Generate HTML and PDF review sheets from stored panels",
	}

	cmd.AddCommand(newReportGenerateCommand(ctx))
	return cmd
}

func newReportGenerateCommand(ctx *cliContext) *cobra.Command {
	var (
		panelKey  string
		latest    bool
		format    string
		output    string
		landscape bool
		paper     string
		setOnly   bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a review sheet",
		Long: `Generate an HTML or PDF review sheet for a stored panel.

PDF output drives a headless Chrome or Chromium, which must be installed.

Examples:
  # HTML sheet for the newest panel
  panelcap report generate --latest

  # Landscape letter PDF for panel 42
  panelcap report generate --panel 42 --format pdf --landscape --paper letter`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if latest == (panelKey != "") {
				return fmt.Errorf("exactly one of --panel or --latest must be specified")
			}
			if format != "html" && format != "pdf" {
				return fmt.Errorf("format must be either 'html' or 'pdf'")
			}

			database, err := ctx.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			var panel *db.Panel
			if latest {
				panels, err := database.ListPanels(db.PanelFilter{Limit: 1})
				if err != nil {
					return err
				}
				if len(panels) == 0 {
					return fmt.Errorf("no panels found")
				}
				panel = panels[0]
			} else if panel, err = resolvePanel(database, panelKey); err != nil {
				return err
			}

			generator := report.NewGenerator(database)
			generator.SetOnly = setOnly

			if output == "" {
				timestamp := time.Now().Format("20060102_150405")
				output = fmt.Sprintf("panelcap_report_%d_%s.%s", panel.ID, timestamp, format)
			}

			switch format {
			case "html":
				html, err := generator.RenderHTML(panel)
				if err != nil {
					return fmt.Errorf("failed to generate HTML report: %w", err)
				}
				if err := os.WriteFile(output, []byte(html), 0o600); err != nil {
					return fmt.Errorf("failed to write HTML file: %w", err)
				}

			case "pdf":
				options := report.DefaultPDFOptions()
				if !cmd.Flags().Changed("paper") {
					paper = ctx.cfg.Report.Paper
				}
				if err := options.SetPaper(strings.ToLower(paper)); err != nil {
					return err
				}
				options.Landscape = landscape || (!cmd.Flags().Changed("landscape") && ctx.cfg.Report.Landscape)
				options.Timeout = timeout

				pdfCtx, cancel := context.WithTimeout(cmd.Context(), timeout+5*time.Second)
				defer cancel()
				if err := generator.RenderPDF(pdfCtx, panel, output, &options); err != nil {
					return fmt.Errorf("failed to generate PDF report: %w", err)
				}
			}

			absPath, _ := filepath.Abs(output)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generated %s report for panel #%d\n", strings.ToUpper(format), panel.ID)
			fmt.Fprintf(out, "Name: %s\n", panel.Name)
			fmt.Fprintf(out, "Output: %s\n", absPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&panelKey, "panel", "", "Panel ID or parse ID")
	cmd.Flags().BoolVar(&latest, "latest", false, "Use the newest panel")
	cmd.Flags().StringVarP(&format, "format", "f", "html", "Output format (html or pdf)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path")
	cmd.Flags().BoolVar(&landscape, "landscape", false, "Generate PDF in landscape mode")
	cmd.Flags().StringVar(&paper, "paper", report.PaperA4, "PDF paper size (a4 or letter)")
	cmd.Flags().BoolVar(&setOnly, "set-only", false, "Only include decoded fields")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "PDF rendering timeout")

	return cmd
}
