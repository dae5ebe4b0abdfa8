package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mscrnt/panelcap/pkg/agent"
)

func newServeCommand(ctx *cliContext) *cobra.Command {
	var (
		host     string
		port     int
		certFile string
		keyFile  string
		caFile   string
		noStore  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the parse agent",
		Long: `Run the panelcap agent, an HTTP service that decodes uploaded
artifacts for remote benches.

The agent exposes the following endpoints:
  POST /parse        - multipart upload of edid, vbt and dpcd files
  GET  /panels       - stored panels (vendor, name, limit, offset)
  GET  /panels/{id}  - one stored panel by ID or parse ID
  GET  /health       - health check endpoint
  GET  /metrics      - Prometheus metrics

TLS is enabled by --cert and --key. Adding --ca requires clients to
present a certificate signed by that CA.

Examples:
  # Plain HTTP on the default port
  panelcap serve

  # Mutual TLS
  panelcap serve --cert server.crt --key server.key --ca ca.crt`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			config := agent.DefaultConfig()
			config.Host = pick(flags.Changed("host"), host, ctx.cfg.Agent.Host)
			config.Port = ctx.cfg.Agent.Port
			if flags.Changed("port") {
				config.Port = port
			}
			config.CertFile = pick(flags.Changed("cert"), certFile, ctx.cfg.Agent.CertFile)
			config.KeyFile = pick(flags.Changed("key"), keyFile, ctx.cfg.Agent.KeyFile)
			config.CAFile = pick(flags.Changed("ca"), caFile, ctx.cfg.Agent.CAFile)

			var store agent.PanelStore
			if !noStore {
				database, err := ctx.openDB()
				if err != nil {
					return err
				}
				defer func() { _ = database.Close() }()
				store = database
			}

			server, err := agent.NewServer(config, store, ctx.logger)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			errChan := make(chan error, 1)
			go func() {
				errChan <- server.Start()
			}()

			mode := "plain HTTP"
			switch {
			case config.MutualTLS():
				mode = "mTLS"
			case config.TLSEnabled():
				mode = "TLS"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Agent listening on %s:%d with %s\n", config.Host, config.Port, mode)
			fmt.Fprintln(out, "Press Ctrl+C to stop...")

			select {
			case sig := <-sigChan:
				fmt.Fprintf(out, "\nReceived signal: %v\n", sig)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown error: %w", err)
				}
				fmt.Fprintln(out, "Server stopped gracefully")
				return nil

			case err := <-errChan:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Address to bind (default from config)")
	cmd.Flags().IntVar(&port, "port", 2223, "Port to listen on")
	cmd.Flags().StringVar(&certFile, "cert", "", "Server certificate file")
	cmd.Flags().StringVar(&keyFile, "key", "", "Server private key file")
	cmd.Flags().StringVar(&caFile, "ca", "", "CA certificate for client verification")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Run without a database; ?save and /panels answer 503")

	return cmd
}

func pick(changed bool, flagValue, configValue string) string {
	if changed {
		return flagValue
	}
	return configValue
}
