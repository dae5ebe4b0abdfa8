package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingDefaultIsFine(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvDBPath, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingExplicitFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadOverlaysDefinedKeys(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDBPath, "")
	t.Setenv(EnvLogLevel, "")

	path := writeConfig(t, `
db_path = "`+filepath.Join(dir, "panels.db")+`"
log_level = "debug"

[agent]
port = 9000

[ingest]
schedule = "*/5 * * * *"

[report]
paper = "Letter"
landscape = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, filepath.Join(dir, "panels.db"), cfg.DBPath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, def.Log.Format, cfg.Log.Format)
	assert.Equal(t, 9000, cfg.Agent.Port)
	assert.Equal(t, def.Agent.Host, cfg.Agent.Host)
	assert.Equal(t, "*/5 * * * *", cfg.Ingest.Schedule)
	assert.Equal(t, def.Ingest.Inbox, cfg.Ingest.Inbox)
	assert.Equal(t, "letter", cfg.Report.Paper)
	assert.True(t, cfg.Report.Landscape)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `db_path = "/tmp/from-file.db"`)
	t.Setenv(EnvDBPath, "/tmp/from-env.db")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.db", cfg.DBPath)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvDBPathExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvDBPath, "~/x.db")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x.db"), cfg.DBPath)
}

func TestLoadFromEnvPath(t *testing.T) {
	path := writeConfig(t, "[agent]\nport = 7001\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Agent.Port)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "[agent]\nprot = 7001\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown key")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Agent.Port = 70000 }, "invalid agent port"},
		{"cert without key", func(c *Config) { c.Agent.CertFile = "server.crt" }, "must be set together"},
		{"ca without cert", func(c *Config) { c.Agent.CAFile = "ca.crt" }, "requires cert_file"},
		{"bad schedule", func(c *Config) { c.Ingest.Schedule = "every so often" }, "invalid ingest schedule"},
		{"bad paper", func(c *Config) { c.Report.Paper = "a3" }, "invalid report paper"},
		{"empty db", func(c *Config) { c.DBPath = "" }, "db_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/panels/db.sqlite")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "panels", "db.sqlite"), got)

	got, err = ExpandPath("")
	require.NoError(t, err)
	assert.Empty(t, got)
}
