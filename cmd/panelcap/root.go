package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mscrnt/panelcap/internal/version"
)

func newRootCommand() *cobra.Command {
	ctx := &cliContext{}

	rootCmd := &cobra.Command{
		Use:   "panelcap",
		Short: "Display panel capability extractor",
		Long: `panelcap decodes a laptop panel's EDID, VBT and DPCD dumps into one
capability record, and keeps those records in a local database for
review, comparison, export and reporting.`,
		Version:       version.New(buildVersion, buildCommit, buildTime).Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return ctx.load()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			ctx.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (default ~/.panelcap/config.toml)")
	flags.StringVar(&ctx.dbPath, "db", "", "Panel database path")
	flags.StringVar(&ctx.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&ctx.logFormat, "log-format", "", "Log format (console or json)")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newParseCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newCompareCommand(ctx))
	rootCmd.AddCommand(newEditCommand(ctx))
	rootCmd.AddCommand(newDeleteCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newReportCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newIngestCommand(ctx))
	rootCmd.AddCommand(newCertCommand(ctx))

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.New(buildVersion, buildCommit, buildTime)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
