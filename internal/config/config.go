// Package config loads panelcap settings from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
)

// Environment overrides
const (
	EnvConfigPath = "PANELCAP_CONFIG"
	EnvDBPath     = "PANELCAP_DB_PATH"
	EnvLogLevel   = "PANELCAP_LOG_LEVEL"
)

// Log controls logger construction
type Log struct {
	Level  string
	Format string
	File   string
}

// Agent controls the HTTP parse service
type Agent struct {
	Host     string
	Port     int
	CertFile string
	KeyFile  string
	CAFile   string
}

// Ingest controls inbox scanning
type Ingest struct {
	Inbox    string
	Schedule string
}

// Report controls PDF rendering
type Report struct {
	Landscape bool
	Paper     string // "a4" or "letter"
}

// Config holds every runtime setting
type Config struct {
	DBPath string
	Log    Log
	Agent  Agent
	Ingest Ingest
	Report Report
}

// fileConfig is the on-disk key layout
type fileConfig struct {
	DBPath    string `toml:"db_path"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`
	Agent     struct {
		Host     string `toml:"host"`
		Port     int    `toml:"port"`
		CertFile string `toml:"cert_file"`
		KeyFile  string `toml:"key_file"`
		CAFile   string `toml:"ca_file"`
	} `toml:"agent"`
	Ingest struct {
		Inbox    string `toml:"inbox"`
		Schedule string `toml:"schedule"`
	} `toml:"ingest"`
	Report struct {
		Landscape bool   `toml:"landscape"`
		Paper     string `toml:"paper"`
	} `toml:"report"`
}

// Default returns the built-in settings rooted at ~/.panelcap
func Default() Config {
	base := baseDir()
	return Config{
		DBPath: filepath.Join(base, "panelcap.db"),
		Log: Log{
			Level:  "info",
			Format: "console",
		},
		Agent: Agent{
			Host: "localhost",
			Port: 2223,
		},
		Ingest: Ingest{
			Inbox:    filepath.Join(base, "inbox"),
			Schedule: "@every 1m",
		},
		Report: Report{
			Paper: "a4",
		},
	}
}

// DefaultPath returns the config file location used when none is given
func DefaultPath() string {
	return filepath.Join(baseDir(), "config.toml")
}

// Load reads path (or $PANELCAP_CONFIG, or the default location) over the
// defaults and applies environment overrides. A missing file is not an
// error unless the path was given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = os.Getenv(EnvConfigPath)
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath()
	}

	if err := loadFile(path, &cfg); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			err = nil
		}
		if err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	path, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("db_path") {
		cfg.DBPath = strings.TrimSpace(raw.DBPath)
	}
	if meta.IsDefined("log_level") {
		cfg.Log.Level = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_format") {
		cfg.Log.Format = strings.TrimSpace(raw.LogFormat)
	}
	if meta.IsDefined("log_file") {
		cfg.Log.File = strings.TrimSpace(raw.LogFile)
	}
	if meta.IsDefined("agent", "host") {
		cfg.Agent.Host = strings.TrimSpace(raw.Agent.Host)
	}
	if meta.IsDefined("agent", "port") {
		cfg.Agent.Port = raw.Agent.Port
	}
	if meta.IsDefined("agent", "cert_file") {
		cfg.Agent.CertFile = strings.TrimSpace(raw.Agent.CertFile)
	}
	if meta.IsDefined("agent", "key_file") {
		cfg.Agent.KeyFile = strings.TrimSpace(raw.Agent.KeyFile)
	}
	if meta.IsDefined("agent", "ca_file") {
		cfg.Agent.CAFile = strings.TrimSpace(raw.Agent.CAFile)
	}
	if meta.IsDefined("ingest", "inbox") {
		cfg.Ingest.Inbox = strings.TrimSpace(raw.Ingest.Inbox)
	}
	if meta.IsDefined("ingest", "schedule") {
		cfg.Ingest.Schedule = strings.TrimSpace(raw.Ingest.Schedule)
	}
	if meta.IsDefined("report", "landscape") {
		cfg.Report.Landscape = raw.Report.Landscape
	}
	if meta.IsDefined("report", "paper") {
		cfg.Report.Paper = strings.ToLower(strings.TrimSpace(raw.Report.Paper))
	}

	for _, p := range []*string{&cfg.DBPath, &cfg.Log.File, &cfg.Ingest.Inbox, &cfg.Agent.CertFile, &cfg.Agent.KeyFile, &cfg.Agent.CAFile} {
		if *p == "" {
			continue
		}
		if *p, err = ExpandPath(*p); err != nil {
			return err
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvDBPath)); v != "" {
		path, err := ExpandPath(v)
		if err != nil {
			return err
		}
		cfg.DBPath = path
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// Validate checks the values that would otherwise fail late
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.Agent.Port <= 0 || c.Agent.Port > 65535 {
		return fmt.Errorf("invalid agent port: %d", c.Agent.Port)
	}
	if (c.Agent.CertFile == "") != (c.Agent.KeyFile == "") {
		return fmt.Errorf("agent cert_file and key_file must be set together")
	}
	if c.Agent.CAFile != "" && c.Agent.CertFile == "" {
		return fmt.Errorf("agent ca_file requires cert_file and key_file")
	}
	if c.Ingest.Schedule != "" {
		if _, err := cron.ParseStandard(c.Ingest.Schedule); err != nil {
			return fmt.Errorf("invalid ingest schedule %q: %w", c.Ingest.Schedule, err)
		}
	}
	switch c.Report.Paper {
	case "a4", "letter":
	default:
		return fmt.Errorf("invalid report paper %q (expected a4 or letter)", c.Report.Paper)
	}
	return nil
}

// ExpandPath resolves a leading ~ and makes the path absolute
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".panelcap"
	}
	return filepath.Join(home, ".panelcap")
}
