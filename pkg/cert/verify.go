package cert

import (
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/mscrnt/panelcap/pkg/db"
)

// VerifyResult contains the result of attestation verification
type VerifyResult struct {
	Valid       bool
	ParseID     string
	Vendor      string
	PartNumber  string
	Resolution  string
	Digest      string
	Error       string
	Certificate *x509.Certificate
}

// VerifyCertificateFile verifies a panel attestation against the CA and
// extracts the attested fields
func VerifyCertificateFile(certPath, caCertPath string) (*VerifyResult, error) {
	cert, err := readCertificate(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	caCert, err := readCertificate(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load CA certificate: %w", err)
	}

	issuer := &Issuer{caCert: caCert}
	result := &VerifyResult{Certificate: cert, Valid: true}
	if err := issuer.Verify(cert, x509.ExtKeyUsageCodeSigning); err != nil {
		result.Valid = false
		result.Error = err.Error()
	}

	for _, ext := range cert.Extensions {
		value := string(ext.Value)
		switch {
		case ext.Id.Equal(oidParseID):
			result.ParseID = value
		case ext.Id.Equal(oidVendor):
			result.Vendor = value
		case ext.Id.Equal(oidPartNumber):
			result.PartNumber = value
		case ext.Id.Equal(oidResolution):
			result.Resolution = value
		case ext.Id.Equal(oidDigest):
			result.Digest = value
		}
	}

	if result.ParseID == "" && result.Valid {
		result.Valid = false
		result.Error = "certificate is not a panel attestation"
	}

	return result, nil
}

// MatchPanel checks that the attested digest still matches a stored panel.
// Edits made after issuing change the digest.
func (r *VerifyResult) MatchPanel(panel *db.Panel) error {
	if panel.ParseID != r.ParseID {
		return fmt.Errorf("parse ID mismatch: certificate %s, panel %s", r.ParseID, panel.ParseID)
	}
	digest, err := InfoDigest(&panel.Info.Info)
	if err != nil {
		return err
	}
	if digest != r.Digest {
		return fmt.Errorf("panel %d has changed since the certificate was issued", panel.ID)
	}
	return nil
}

// FormatVerifyResult formats verification result for display
func FormatVerifyResult(result *VerifyResult) string {
	var sb strings.Builder

	sb.WriteString("Certificate Verification Result\n")
	sb.WriteString("===============================\n\n")

	if result.Valid {
		sb.WriteString("Status: VALID ✓\n")
	} else {
		sb.WriteString("Status: INVALID ✗\n")
		sb.WriteString(fmt.Sprintf("Error: %s\n", result.Error))
	}

	sb.WriteString("\nCertificate Details:\n")
	sb.WriteString(fmt.Sprintf("  Subject: %s\n", result.Certificate.Subject))
	sb.WriteString(fmt.Sprintf("  Issuer: %s\n", result.Certificate.Issuer))
	sb.WriteString(fmt.Sprintf("  Serial: %s\n", result.Certificate.SerialNumber))
	sb.WriteString(fmt.Sprintf("  Valid From: %s\n", result.Certificate.NotBefore))
	sb.WriteString(fmt.Sprintf("  Valid Until: %s\n", result.Certificate.NotAfter))

	if result.ParseID != "" {
		sb.WriteString("\nPanel Information:\n")
		sb.WriteString(fmt.Sprintf("  Parse ID: %s\n", result.ParseID))
		sb.WriteString(fmt.Sprintf("  Vendor: %s\n", result.Vendor))
		sb.WriteString(fmt.Sprintf("  Part Number: %s\n", result.PartNumber))
		sb.WriteString(fmt.Sprintf("  Resolution: %s\n", result.Resolution))
		sb.WriteString(fmt.Sprintf("  Digest: %s\n", result.Digest))
	}

	return sb.String()
}
