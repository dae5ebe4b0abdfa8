package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/mscrnt/panelcap/internal/config"
	"github.com/mscrnt/panelcap/internal/logging"
	"github.com/mscrnt/panelcap/pkg/db"
)

// cliContext carries the global flags and the values derived from them
type cliContext struct {
	configPath string
	dbPath     string
	logLevel   string
	logFormat  string

	cfg    config.Config
	logger *zap.Logger
	loaded bool
}

// load reads the configuration, applies flag overrides and builds the logger
func (c *cliContext) load() error {
	if c.loaded {
		return nil
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.dbPath != "" {
		if cfg.DBPath, err = config.ExpandPath(c.dbPath); err != nil {
			return err
		}
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Log.Format = c.logFormat
	}

	opts := logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	}
	if cfg.Log.File != "" {
		opts.OutputPaths = []string{cfg.Log.File}
	}
	logger, err := logging.New(opts)
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.logger = logger
	c.loaded = true
	return nil
}

func (c *cliContext) close() {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// openDB opens the panel database, creating its directory
func (c *cliContext) openDB() (*db.DB, error) {
	if err := os.MkdirAll(filepath.Dir(c.cfg.DBPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	database, err := db.Open(c.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// resolvePanel looks a panel up by numeric ID or parse UUID
func resolvePanel(database *db.DB, key string) (*db.Panel, error) {
	var (
		panel *db.Panel
		err   error
	)
	if id, convErr := strconv.ParseInt(key, 10, 64); convErr == nil {
		panel, err = database.GetPanel(id)
	} else {
		panel, err = database.GetPanelByParseID(key)
	}
	if errors.Is(err, db.ErrPanelNotFound) {
		return nil, fmt.Errorf("panel %s not found", key)
	}
	return panel, err
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// createOutput opens path for writing, or returns stdout when path is empty
func createOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path) // #nosec G304 -- path is a user-specified output file
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}
