// Package cert issues the certificates panelcap uses: agent TLS identities
// and signed panel attestations that pin a stored record's contents.
package cert

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/mscrnt/panelcap/pkg/db"
	"github.com/mscrnt/panelcap/pkg/panelinfo"
)

// Role selects the extended key usage of an issued TLS certificate
type Role int

// Certificate roles
const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}

// Attestation extension OIDs
var (
	oidParseID    = []int{1, 3, 6, 1, 4, 1, 99999, 3, 1}
	oidVendor     = []int{1, 3, 6, 1, 4, 1, 99999, 3, 2}
	oidPartNumber = []int{1, 3, 6, 1, 4, 1, 99999, 3, 3}
	oidResolution = []int{1, 3, 6, 1, 4, 1, 99999, 3, 4}
	oidDigest     = []int{1, 3, 6, 1, 4, 1, 99999, 3, 5}
)

// Key sizes, lowered by tests
var (
	caKeyBits   = 4096
	leafKeyBits = 2048
)

// Issuer signs certificates with a panelcap CA
type Issuer struct {
	caCert *x509.Certificate
	caKey  *rsa.PrivateKey
}

// NewIssuer creates an issuer with a fresh self-signed CA
func NewIssuer() (*Issuer, error) {
	caKey, err := rsa.GenerateKey(rand.Reader, caKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CA key: %w", err)
	}

	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	caTemplate := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"panelcap"},
			CommonName:   "panelcap CA",
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour * 10), // 10 years
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	caCertDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA certificate: %w", err)
	}

	caCert, err := x509.ParseCertificate(caCertDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA certificate: %w", err)
	}

	return &Issuer{caCert: caCert, caKey: caKey}, nil
}

// SaveCA saves the CA certificate and key to files
func (i *Issuer) SaveCA(certPath, keyPath string) error {
	if err := writePEM(certPath, "CERTIFICATE", i.caCert.Raw, 0o644); err != nil {
		return fmt.Errorf("failed to write CA cert: %w", err)
	}
	if err := writePEM(keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(i.caKey), 0o600); err != nil {
		return fmt.Errorf("failed to write CA key: %w", err)
	}
	return nil
}

// LoadCA loads CA certificate and key from files
func LoadCA(certPath, keyPath string) (*Issuer, error) {
	caCert, err := readCertificate(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load CA cert: %w", err)
	}

	keyPEM, err := os.ReadFile(keyPath) // #nosec G304 -- keyPath is a user-specified CA key file path
	if err != nil {
		return nil, fmt.Errorf("failed to read CA key: %w", err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("failed to decode CA key PEM")
	}

	caKey, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA key: %w", err)
	}

	return &Issuer{caCert: caCert, caKey: caKey}, nil
}

// CACertificate returns the CA certificate
func (i *Issuer) CACertificate() *x509.Certificate {
	return i.caCert
}

// IssueTLS generates an agent server or client certificate. Hosts may be
// DNS names or IP addresses and only apply to server certificates.
func (i *Issuer) IssueTLS(role Role, commonName string, hosts []string, validFor time.Duration) (*Certificate, error) {
	template := &x509.Certificate{
		Subject: pkix.Name{
			Organization: []string{"panelcap agent"},
			CommonName:   commonName,
		},
		NotBefore: time.Now().Add(-time.Minute),
		NotAfter:  time.Now().Add(validFor),
		KeyUsage:  x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
	}

	switch role {
	case RoleServer:
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
		for _, h := range hosts {
			if ip := net.ParseIP(h); ip != nil {
				template.IPAddresses = append(template.IPAddresses, ip)
			} else {
				template.DNSNames = append(template.DNSNames, h)
			}
		}
	case RoleClient:
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	default:
		return nil, fmt.Errorf("unknown certificate role %d", role)
	}

	return i.sign(template)
}

// IssuePanelCertificate signs an attestation of a stored panel record. The
// certificate carries the parse ID, identity fields and a digest of the
// decoded record.
func (i *Issuer) IssuePanelCertificate(panel *db.Panel) (*Certificate, error) {
	digest, err := InfoDigest(&panel.Info.Info)
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		Subject: pkix.Name{
			Organization: []string{"panelcap attestation"},
			CommonName:   fmt.Sprintf("Panel #%d", panel.ID),
		},
		NotBefore:   panel.CreatedAt.Add(-time.Minute),
		NotAfter:    panel.CreatedAt.Add(365 * 24 * time.Hour), // 1 year
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
		ExtraExtensions: []pkix.Extension{
			{Id: oidParseID, Value: []byte(panel.ParseID)},
			{Id: oidVendor, Value: []byte(panel.Vendor)},
			{Id: oidPartNumber, Value: []byte(panel.PartNumber)},
			{Id: oidResolution, Value: []byte(panel.Resolution)},
			{Id: oidDigest, Value: []byte(digest)},
		},
	}

	c, err := i.sign(template)
	if err != nil {
		return nil, err
	}
	c.PanelID = panel.ID
	return c, nil
}

// Verify verifies a certificate against the CA for the given usage
func (i *Issuer) Verify(cert *x509.Certificate, usage x509.ExtKeyUsage) error {
	roots := x509.NewCertPool()
	roots.AddCert(i.caCert)

	opts := x509.VerifyOptions{
		Roots:     roots,
		KeyUsages: []x509.ExtKeyUsage{usage},
	}
	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("certificate verification failed: %w", err)
	}
	return nil
}

func (i *Issuer) sign(template *x509.Certificate) (*Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, leafKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	template.SerialNumber, err = newSerial()
	if err != nil {
		return nil, err
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, i.caCert, &key.PublicKey, i.caKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return &Certificate{
		Certificate: cert,
		PrivateKey:  key,
		IssuedAt:    time.Now(),
	}, nil
}

// InfoDigest is the hex SHA-256 of the record's JSON form
func InfoDigest(info *panelinfo.Info) (string, error) {
	data, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("failed to encode panel info: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Certificate represents an issued certificate
type Certificate struct {
	*x509.Certificate
	PrivateKey *rsa.PrivateKey
	PanelID    int64
	IssuedAt   time.Time
}

// Save saves the certificate, and the key if keyPath is set
func (c *Certificate) Save(certPath, keyPath string) error {
	if err := writePEM(certPath, "CERTIFICATE", c.Raw, 0o644); err != nil {
		return fmt.Errorf("failed to write cert: %w", err)
	}
	if keyPath == "" {
		return nil
	}
	if err := writePEM(keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(c.PrivateKey), 0o600); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

// PEM returns the certificate as a PEM-encoded string
func (c *Certificate) PEM() string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Raw}))
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) // #nosec G304 -- path is provided by the user and validated by the caller
	if err != nil {
		return err
	}
	if err := pem.Encode(out, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile does not change the mode of an existing file
	return os.Chmod(path, perm)
}

func readCertificate(path string) (*x509.Certificate, error) {
	certPEM, err := os.ReadFile(path) // #nosec G304 -- path is a user-specified certificate file
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("failed to decode certificate PEM")
	}
	return x509.ParseCertificate(block.Bytes)
}

func newSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	return serial, nil
}
