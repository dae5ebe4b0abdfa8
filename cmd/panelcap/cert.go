package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mscrnt/panelcap/pkg/cert"
)

func newCertCommand(ctx *cliContext) *cobra.Command {
	var caPath string

	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Certificate management",
		Long:  "Issue agent TLS certificates and signed panel attestations",
	}
	cmd.PersistentFlags().StringVar(&caPath, "ca-path", "", "Path to CA directory (default ~/.panelcap/ca)")

	caDir := func() (string, error) {
		if caPath != "" {
			return caPath, nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, ".panelcap", "ca"), nil
	}
	loadIssuer := func() (*cert.Issuer, string, error) {
		dir, err := caDir()
		if err != nil {
			return nil, "", err
		}
		issuer, err := cert.LoadCA(filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key"))
		if err != nil {
			return nil, "", fmt.Errorf("failed to load CA (run 'panelcap cert init' first): %w", err)
		}
		return issuer, dir, nil
	}

	cmd.AddCommand(certInitCommand(caDir))
	cmd.AddCommand(certIssueCommand(loadIssuer))
	cmd.AddCommand(certAttestCommand(ctx, loadIssuer))
	cmd.AddCommand(certVerifyCommand(ctx, caDir))

	return cmd
}

func certInitCommand(caDir func() (string, error)) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize certificate authority",
		Long: `Initialize a certificate authority (CA) for agent TLS and panel
attestations.

Examples:
  panelcap cert init
  panelcap cert init --ca-path /srv/panelcap/ca --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := caDir()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return fmt.Errorf("failed to create CA directory: %w", err)
			}

			certPath := filepath.Join(dir, "ca.crt")
			keyPath := filepath.Join(dir, "ca.key")
			if !force {
				if _, err := os.Stat(certPath); err == nil {
					return fmt.Errorf("CA certificate already exists at %s (use --force to overwrite)", certPath)
				}
			}

			issuer, err := cert.NewIssuer()
			if err != nil {
				return fmt.Errorf("failed to create CA: %w", err)
			}
			if err := issuer.SaveCA(certPath, keyPath); err != nil {
				return fmt.Errorf("failed to save CA: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Certificate Authority initialized successfully")
			fmt.Fprintf(out, "CA Certificate: %s\n", certPath)
			fmt.Fprintf(out, "CA Private Key: %s\n", keyPath)
			fmt.Fprintln(out, "\nIMPORTANT: Keep the private key secure and backed up!")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Force overwrite existing CA")
	return cmd
}

func certIssueCommand(loadIssuer func() (*cert.Issuer, string, error)) *cobra.Command {
	var (
		role     string
		name     string
		hosts    []string
		output   string
		keyOut   string
		validFor time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an agent server or client certificate",
		Long: `Issue a TLS certificate for "panelcap serve" or "panelcap parse --remote".

Examples:
  panelcap cert issue --role server --name bench-01 --host bench-01 --host 10.0.0.7
  panelcap cert issue --role client --name operator`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r cert.Role
			switch role {
			case "server":
				r = cert.RoleServer
			case "client":
				r = cert.RoleClient
			default:
				return fmt.Errorf("role must be either 'server' or 'client'")
			}
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if r == cert.RoleServer && len(hosts) == 0 {
				hosts = []string{name}
			}

			issuer, _, err := loadIssuer()
			if err != nil {
				return err
			}

			c, err := issuer.IssueTLS(r, name, hosts, validFor)
			if err != nil {
				return fmt.Errorf("failed to issue certificate: %w", err)
			}

			if output == "" {
				output = name + ".crt"
			}
			if keyOut == "" {
				keyOut = name + ".key"
			}
			if err := c.Save(output, keyOut); err != nil {
				return fmt.Errorf("failed to save certificate: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Issued %s certificate for %s\n", r, name)
			fmt.Fprintf(out, "Certificate: %s\n", output)
			fmt.Fprintf(out, "Private Key: %s\n", keyOut)
			fmt.Fprintf(out, "Valid Until: %s\n", c.NotAfter.Format(timeLayout))
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "server", "Certificate role (server or client)")
	cmd.Flags().StringVar(&name, "name", "", "Common name")
	cmd.Flags().StringArrayVar(&hosts, "host", nil, "DNS name or IP for server certificates (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Certificate file (default <name>.crt)")
	cmd.Flags().StringVar(&keyOut, "key", "", "Private key file (default <name>.key)")
	cmd.Flags().DurationVar(&validFor, "valid-for", 365*24*time.Hour, "Validity period")

	return cmd
}

func certAttestCommand(ctx *cliContext, loadIssuer func() (*cert.Issuer, string, error)) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "attest <id|parse-id>",
		Short: "Sign an attestation of a stored panel",
		Long: `Sign a certificate that pins a stored panel's decoded record.

The certificate embeds the parse ID, vendor, part number, resolution and a
SHA-256 digest of the record. "panelcap cert verify --panel" detects any
later edit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issuer, _, err := loadIssuer()
			if err != nil {
				return err
			}

			database, err := ctx.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			panel, err := resolvePanel(database, args[0])
			if err != nil {
				return err
			}

			c, err := issuer.IssuePanelCertificate(panel)
			if err != nil {
				return fmt.Errorf("failed to issue certificate: %w", err)
			}

			if output == "" {
				output = fmt.Sprintf("panelcap_attest_%d_%s.pem", panel.ID, time.Now().Format("20060102_150405"))
			}
			if err := c.Save(output, ""); err != nil {
				return fmt.Errorf("failed to save certificate: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Attestation issued for panel #%d (%s)\n", panel.ID, panel.Name)
			fmt.Fprintf(out, "Parse ID: %s\n", panel.ParseID)
			fmt.Fprintf(out, "Certificate: %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output certificate file")
	return cmd
}

func certVerifyCommand(ctx *cliContext, caDir func() (string, error)) *cobra.Command {
	var checkPanel bool

	cmd := &cobra.Command{
		Use:   "verify <certificate>",
		Short: "Verify a panel attestation",
		Long: `Verify a panel attestation against the CA and display its contents.
With --panel the attested digest is also checked against the stored record.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := caDir()
			if err != nil {
				return err
			}

			result, err := cert.VerifyCertificateFile(args[0], filepath.Join(dir, "ca.crt"))
			if err != nil {
				return fmt.Errorf("failed to verify certificate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cert.FormatVerifyResult(result))

			if !result.Valid {
				return fmt.Errorf("certificate is not valid")
			}
			if !checkPanel {
				return nil
			}

			database, err := ctx.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			panel, err := resolvePanel(database, result.ParseID)
			if err != nil {
				return err
			}
			if err := result.MatchPanel(panel); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored panel #%d matches the attestation\n", panel.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkPanel, "panel", false, "Check the digest against the stored panel")
	return cmd
}
