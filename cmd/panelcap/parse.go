package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mscrnt/panelcap/internal/logging"
	"github.com/mscrnt/panelcap/pkg/agent"
	"github.com/mscrnt/panelcap/pkg/db"
	"github.com/mscrnt/panelcap/pkg/panelinfo"
)

type parseOptions struct {
	edid, vbt, dpcd string
	asJSON          bool
	setOnly         bool
	save            bool
	name            string

	remote   string
	certFile string
	keyFile  string
	caFile   string
}

func newParseCommand(ctx *cliContext) *cobra.Command {
	var opts parseOptions

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Decode EDID, VBT and DPCD dumps into a capability record",
		Long: `Decode any combination of an EDID binary, a VBT binary and a DPCD text
dump into a single panel capability record.

A truncated EDID is reported and skipped. A DPCD dump that is missing or
shorter than 0x71 bytes fails the whole run.

Examples:
  # Decode locally and print a table
  panelcap parse --edid panel.bin --dpcd dpcd.txt

  # Decode and store the record
  panelcap parse --edid panel.bin --dpcd dpcd.txt --save --name "lab 42"

  # Decode on a remote agent over mTLS
  panelcap parse --edid panel.bin --remote bench-01:2223 \
    --cert client.crt --key client.key --ca ca.crt`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.edid == "" && opts.vbt == "" && opts.dpcd == "" {
				return fmt.Errorf("at least one of --edid, --vbt or --dpcd is required")
			}
			if opts.remote != "" {
				return runRemoteParse(cmd, opts)
			}
			return runLocalParse(cmd, ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.edid, "edid", "", "EDID binary file")
	flags.StringVar(&opts.vbt, "vbt", "", "VBT binary file")
	flags.StringVar(&opts.dpcd, "dpcd", "", "DPCD text dump")
	flags.BoolVar(&opts.asJSON, "json", false, "Print the record as JSON")
	flags.BoolVar(&opts.setOnly, "set-only", false, "Only print decoded fields")
	flags.BoolVar(&opts.save, "save", false, "Store the record in the database")
	flags.StringVar(&opts.name, "name", "", "Name for the stored record")
	flags.StringVar(&opts.remote, "remote", "", "Decode on an agent at host:port")
	flags.StringVar(&opts.certFile, "cert", "", "Client certificate for --remote")
	flags.StringVar(&opts.keyFile, "key", "", "Client private key for --remote")
	flags.StringVar(&opts.caFile, "ca", "", "CA certificate for --remote")

	return cmd
}

func runLocalParse(cmd *cobra.Command, ctx *cliContext, opts parseOptions) error {
	parser := panelinfo.NewParser(ctx.logger)
	info, err := parser.ParseAll(opts.edid, opts.vbt, opts.dpcd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.save {
		database, err := ctx.openDB()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		paths := db.ArtifactPaths{
			EDID: absPath(opts.edid),
			VBT:  absPath(opts.vbt),
			DPCD: absPath(opts.dpcd),
		}
		panel, err := database.CreatePanel(opts.name, paths, info)
		if err != nil {
			return err
		}
		ctx.logger.Info("panel saved",
			zap.Int64(logging.FieldPanelID, panel.ID),
			zap.String("parse_id", panel.ParseID),
		)
		printSaved(cmd, opts.asJSON, panel.ID, panel.ParseID)
	}

	return printInfo(out, info, opts.asJSON, opts.setOnly)
}

func runRemoteParse(cmd *cobra.Command, opts parseOptions) error {
	host, portStr, err := net.SplitHostPort(opts.remote)
	if err != nil {
		return fmt.Errorf("invalid --remote %q: %w", opts.remote, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid --remote port %q", portStr)
	}

	client, err := agent.NewClient(agent.ClientConfig{
		Host:     host,
		Port:     port,
		CertFile: opts.certFile,
		KeyFile:  opts.keyFile,
		CAFile:   opts.caFile,
	})
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	resp, err := client.Parse(reqCtx, agent.ParseFiles{EDID: opts.edid, VBT: opts.vbt, DPCD: opts.dpcd}, opts.save, opts.name)
	if err != nil {
		return err
	}
	if opts.save {
		printSaved(cmd, opts.asJSON, resp.ID, resp.ParseID)
	}
	return printInfo(cmd.OutOrStdout(), resp.Info, opts.asJSON, opts.setOnly)
}

// printSaved reports a stored record, on stderr when stdout carries JSON
func printSaved(cmd *cobra.Command, asJSON bool, id int64, parseID string) {
	w := cmd.OutOrStdout()
	if asJSON {
		w = cmd.ErrOrStderr()
	}
	fmt.Fprintf(w, "Saved panel #%d (parse ID %s)\n", id, parseID)
}

func printInfo(w io.Writer, info *panelinfo.Info, asJSON, setOnly bool) error {
	if asJSON {
		return writeJSON(w, info)
	}

	fields := panelinfo.Fields(info)
	if setOnly {
		fields = panelinfo.SetFields(info)
	}

	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		value := f.Value
		if !f.Set {
			value = "-"
		}
		rows = append(rows, []string{f.Group, f.Name, value})
	}

	if len(info.Sources) > 0 {
		fmt.Fprintf(w, "Sources: %v\n", info.Sources)
	} else {
		fmt.Fprintln(w, "Sources: none decoded")
	}
	_, err := fmt.Fprintln(w, renderTable(w, []string{"Group", "Field", "Value"}, rows, nil))
	return err
}

func absPath(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
