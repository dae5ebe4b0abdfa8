package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mscrnt/panelcap/internal/config"
	"github.com/mscrnt/panelcap/pkg/ingest"
)

func newIngestCommand(ctx *cliContext) *cobra.Command {
	var inbox string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Decode artifact sets dropped into an inbox directory",
		Long: `Decode artifact sets dropped into an inbox directory.

Files sharing a stem form one set: <stem>.edid or <stem>.bin, <stem>.vbt,
and <stem>.dpcd, <stem>.dpcd.txt or <stem>.txt. Each decoded set becomes a
stored panel named after its stem and moves to processed/. Sets that fail
move to failed/ with a <stem>.error file.`,
	}

	cmd.PersistentFlags().StringVar(&inbox, "inbox", "", "Inbox directory (default from config)")

	newScanner := func() (*ingest.Scanner, func(), error) {
		dir := ctx.cfg.Ingest.Inbox
		if inbox != "" {
			var err error
			if dir, err = config.ExpandPath(inbox); err != nil {
				return nil, nil, err
			}
		}
		database, err := ctx.openDB()
		if err != nil {
			return nil, nil, err
		}
		return ingest.NewScanner(dir, database, ctx.logger), func() { _ = database.Close() }, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Scan the inbox once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scanner, closeDB, err := newScanner()
			if err != nil {
				return err
			}
			defer closeDB()

			result, err := scanner.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range result.Panels {
				fmt.Fprintf(out, "Stored panel #%d %s (%s)\n", p.ID, p.Name, p.ParseID)
			}
			fmt.Fprintf(out, "%d processed, %d failed\n", result.Processed, result.Failed)
			return nil
		},
	})

	var schedule string
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Scan the inbox on a schedule until interrupted",
		Long: `Scan the inbox on a schedule until interrupted.

The schedule is a five-field cron expression or a descriptor such as
"@every 30s" or "@hourly". The inbox is also scanned once at start.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("schedule") {
				schedule = ctx.cfg.Ingest.Schedule
			}

			scanner, closeDB, err := newScanner()
			if err != nil {
				return err
			}
			defer closeDB()

			runner, err := ingest.NewRunner(scanner, schedule, ctx.logger)
			if err != nil {
				return err
			}

			if _, err := runner.RunNow(cmd.Context()); err != nil {
				return err
			}
			runner.Start()
			defer runner.Stop(time.Minute)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching %s (%s), next scan %s\n",
				scanner.Inbox(), schedule, runner.Next().Format(timeLayout))
			fmt.Fprintln(out, "Press Ctrl+C to stop...")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			select {
			case sig := <-sigChan:
				fmt.Fprintf(out, "\nReceived signal: %v\n", sig)
			case <-cmd.Context().Done():
			}

			if last, runs := runner.Last(); last != nil {
				fmt.Fprintf(out, "%d scans, last: %d processed, %d failed\n", runs, last.Processed, last.Failed)
			}
			return nil
		},
	}
	watch.Flags().StringVar(&schedule, "schedule", "", "Cron schedule (default from config)")
	cmd.AddCommand(watch)

	return cmd
}
