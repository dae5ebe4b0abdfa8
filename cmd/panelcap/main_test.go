package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscrnt/panelcap/internal/config"
	"github.com/mscrnt/panelcap/pkg/agent"
	"github.com/mscrnt/panelcap/pkg/db"
	"github.com/mscrnt/panelcap/pkg/panelinfo"
)

type cliTestEnv struct {
	dir    string
	dbPath string
	edid   string
	dpcd   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv(config.EnvDBPath, "")
	t.Setenv(config.EnvLogLevel, "")

	edid := make([]byte, 128)
	copy(edid, []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00})
	edid[0x08], edid[0x09] = 0x09, 0xE5 // BOE
	edid[0x12], edid[0x13] = 1, 4
	edid[0x14] = 0xA5
	edid[0x18] = 0x02
	copy(edid[0x36:], []byte{0x02, 0x3A, 0x80, 0x18, 0x71, 0x38, 0x2D, 0x40})

	env := &cliTestEnv{
		dir:    base,
		dbPath: filepath.Join(base, "data", "panelcap.db"),
		edid:   filepath.Join(base, "panel.edid"),
		dpcd:   filepath.Join(base, "panel.dpcd"),
	}
	require.NoError(t, os.WriteFile(env.edid, edid, 0o600))
	require.NoError(t, os.WriteFile(env.dpcd, []byte("0x0: 0x14, 0x1e, 0x04\n0x70: 0x04, 0x00, 0x00, 0x00, 0x00, 0x00\n"), 0o600))
	return env
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--db", e.dbPath, "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestParseCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "parse", "--edid", env.edid, "--dpcd", env.dpcd)
	assert.Contains(t, out, "Sources: [edid dpcd]")
	assert.Contains(t, out, "1920x1080")
	assert.Contains(t, out, "8.1 Gbps")
	assert.Contains(t, out, "vbatt_pol")

	out = env.mustRun(t, "parse", "--edid", env.edid, "--set-only")
	assert.NotContains(t, out, "vbatt_pol")

	out = env.mustRun(t, "parse", "--edid", env.edid, "--dpcd", env.dpcd, "--json")
	var info panelinfo.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "BOE", panelinfo.Value(info.PanelVendor))
	assert.Equal(t, "Yes", panelinfo.Value(info.IntelLRRVersion))
}

func TestParseCommandErrors(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := env.run(t, "parse")
	require.Error(t, err)

	short := filepath.Join(env.dir, "short.dpcd")
	require.NoError(t, os.WriteFile(short, []byte("0x0: 0x14\n"), 0o600))
	_, err = env.run(t, "parse", "--dpcd", short)
	require.ErrorIs(t, err, panelinfo.ErrInsufficientDPCD)

	_, err = env.run(t, "parse", "--edid", env.edid, "--remote", "no-port")
	require.Error(t, err)
}

func TestPanelLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "list")
	assert.Contains(t, out, "No panels found")

	out = env.mustRun(t, "parse", "--edid", env.edid, "--dpcd", env.dpcd, "--save", "--name", "lab one")
	assert.Contains(t, out, "Saved panel #1")
	env.mustRun(t, "parse", "--edid", env.edid, "--save", "--name", "lab two")

	out = env.mustRun(t, "list")
	assert.Contains(t, out, "lab one")
	assert.Contains(t, out, "lab two")

	out = env.mustRun(t, "list", "--json")
	var panels []*db.Panel
	require.NoError(t, json.Unmarshal([]byte(out), &panels))
	require.Len(t, panels, 2)
	assert.Equal(t, "lab two", panels[0].Name)
	assert.Equal(t, env.edid, panels[0].EDIDPath)

	out = env.mustRun(t, "show", "1")
	assert.Contains(t, out, "Panel #1: lab one")
	assert.Contains(t, out, "DPCD:")

	out = env.mustRun(t, "show", panels[1].ParseID, "--json")
	var shown db.Panel
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, int64(1), shown.ID)

	out = env.mustRun(t, "compare", "1", "2")
	assert.Contains(t, out, "data_link_rate")
	assert.Contains(t, out, "field(s) differ")

	out = env.mustRun(t, "edit", "1", "--notes", "lot 7", "--set", "panel_vendor=AUO", "--set", "touch_support=yes")
	assert.Contains(t, out, "Updated panel #1")
	out = env.mustRun(t, "show", "1", "--json")
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "lot 7", shown.Notes)
	assert.Equal(t, "AUO", shown.Vendor)
	require.NotNil(t, shown.Info.TouchSupport)
	assert.True(t, *shown.Info.TouchSupport)

	_, err := env.run(t, "edit", "1")
	require.Error(t, err)
	_, err = env.run(t, "edit", "1", "--set", "no_such_field=1")
	require.Error(t, err)
	_, err = env.run(t, "edit", "1", "--set", "missing-equals")
	require.Error(t, err)

	out = env.mustRun(t, "delete", "2")
	assert.Contains(t, out, "Deleted panel #2 (lab two)")
	_, err = env.run(t, "show", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestExportCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "parse", "--edid", env.edid, "--save", "--name", "exported")

	out := env.mustRun(t, "export", "csv", "--panel", "1")
	assert.True(t, strings.HasPrefix(out, "Panel ID,Name,Group,Field,Value"), out)
	assert.Contains(t, out, "resolution,1920x1080")

	path := filepath.Join(env.dir, "all.json")
	out = env.mustRun(t, "export", "json", "--all", "--out", path)
	assert.Contains(t, out, "Exported to "+path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "exported")

	out = env.mustRun(t, "export", "yml", "--panel", "1")
	assert.Contains(t, out, "identity:")

	_, err = env.run(t, "export", "yaml", "--all")
	require.Error(t, err)
	_, err = env.run(t, "export", "xml", "--all")
	require.Error(t, err)
	_, err = env.run(t, "export", "csv")
	require.Error(t, err)
}

func TestReportGenerateHTML(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "parse", "--edid", env.edid, "--dpcd", env.dpcd, "--save", "--name", "sheet")

	path := filepath.Join(env.dir, "sheet.html")
	out := env.mustRun(t, "report", "generate", "--latest", "--output", path)
	assert.Contains(t, out, "Generated HTML report for panel #1")

	html, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(html), "sheet")
	assert.Contains(t, string(html), "1920x1080")

	_, err = env.run(t, "report", "generate", "--panel", "1", "--format", "docx")
	require.Error(t, err)
}

func TestIngestRunCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	inbox := filepath.Join(env.dir, "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o750))
	edid, err := os.ReadFile(env.edid)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "bench7.edid"), edid, 0o600))

	out := env.mustRun(t, "ingest", "run", "--inbox", inbox)
	assert.Contains(t, out, "Stored panel #1 bench7")
	assert.Contains(t, out, "1 processed, 0 failed")

	out = env.mustRun(t, "list")
	assert.Contains(t, out, "bench7")
}

func TestParseRemote(t *testing.T) {
	env := setupCLITestEnv(t)

	server, err := agent.NewServer(agent.DefaultConfig(), nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)

	out := env.mustRun(t, "parse", "--edid", env.edid, "--remote", u.Host, "--json")
	var info panelinfo.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "1920x1080", panelinfo.Value(info.Resolution))

	// no store behind this agent
	_, err = env.run(t, "parse", "--edid", env.edid, "--remote", u.Host, "--save")
	var apiErr *agent.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 503, apiErr.StatusCode)
}

func TestCertCommands(t *testing.T) {
	if testing.Short() {
		t.Skip("generates RSA keys")
	}
	env := setupCLITestEnv(t)
	caPath := filepath.Join(env.dir, "ca")
	env.mustRun(t, "parse", "--edid", env.edid, "--save")

	out := env.mustRun(t, "cert", "init", "--ca-path", caPath)
	assert.Contains(t, out, "initialized successfully")
	_, err := env.run(t, "cert", "init", "--ca-path", caPath)
	require.Error(t, err)

	serverCrt := filepath.Join(env.dir, "server.crt")
	out = env.mustRun(t, "cert", "issue", "--ca-path", caPath, "--role", "server", "--name", "localhost",
		"--output", serverCrt, "--key", filepath.Join(env.dir, "server.key"))
	assert.Contains(t, out, "Issued server certificate for localhost")
	assert.FileExists(t, serverCrt)

	attest := filepath.Join(env.dir, "attest.pem")
	env.mustRun(t, "cert", "attest", "1", "--ca-path", caPath, "--output", attest)

	out = env.mustRun(t, "cert", "verify", attest, "--ca-path", caPath, "--panel")
	assert.Contains(t, out, "VALID")
	assert.Contains(t, out, "matches the attestation")

	env.mustRun(t, "edit", "1", "--set", "panel_part_number=REWORKED")
	_, err = env.run(t, "cert", "verify", attest, "--ca-path", caPath, "--panel")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "changed")

	_, err = env.run(t, "cert", "verify", serverCrt, "--ca-path", caPath)
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "version")
	assert.Contains(t, out, "panelcap")

	out = env.mustRun(t, "version", "--json")
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.NotEmpty(t, v["version"])
}

func TestInvalidConfigFails(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("bogus_key = 1\n"), 0o600))

	_, err := env.run(t, "--config", path, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key")
}
