package agent

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Config contains configuration for the agent server
type Config struct {
	Host           string // Bind address, empty for all interfaces
	Port           int    // Server port
	CertFile       string // Server certificate file
	KeyFile        string // Server private key file
	CAFile         string // CA certificate file for client verification
	MaxUploadBytes int64  // Per-request multipart limit
}

// DefaultConfig returns default agent configuration
func DefaultConfig() Config {
	return Config{
		Port:           2223,
		MaxUploadBytes: 8 << 20,
	}
}

// TLSEnabled reports whether the server should serve HTTPS
func (c Config) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// MutualTLS reports whether client certificates are required
func (c Config) MutualTLS() bool {
	return c.TLSEnabled() && c.CAFile != ""
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.MaxUploadBytes < 0 {
		return fmt.Errorf("invalid upload limit: %d", c.MaxUploadBytes)
	}

	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("server certificate and key files must be set together")
	}

	if c.CAFile != "" && !c.TLSEnabled() {
		return fmt.Errorf("CA certificate file requires a server certificate and key")
	}

	return checkFiles(c.CertFile, c.KeyFile, c.CAFile)
}

// LoadTLSConfig creates TLS configuration from the agent config. It returns
// nil when TLS is not configured.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled() {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}

	if c.CAFile != "" {
		pool, err := loadCertPool(c.CAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
		tlsConfig.ClientCAs = pool
	}

	return tlsConfig, nil
}

// ClientConfig contains configuration for the agent client
type ClientConfig struct {
	Host     string // Target host
	Port     int    // Target port
	CertFile string // Client certificate file
	KeyFile  string // Client private key file
	CAFile   string // CA certificate file for server verification
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host: "localhost",
		Port: 2223,
	}
}

// TLSEnabled reports whether the client should dial HTTPS
func (c ClientConfig) TLSEnabled() bool {
	return c.CAFile != "" || c.CertFile != ""
}

// Validate checks if the client configuration is valid
func (c ClientConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("client certificate and key files must be set together")
	}

	return checkFiles(c.CertFile, c.KeyFile, c.CAFile)
}

// LoadClientTLSConfig creates TLS configuration for the client. It returns
// nil when TLS is not configured.
func (c ClientConfig) LoadClientTLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled() {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS13,
	}

	if c.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if c.CAFile != "" {
		pool, err := loadCertPool(c.CAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}
	return pool, nil
}

func checkFiles(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("file not found: %s", p)
		}
	}
	return nil
}
