package report

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscrnt/panelcap/pkg/db"
	"github.com/mscrnt/panelcap/pkg/panelinfo"
)

func ptr[T any](v T) *T { return &v }

func storedPanel(t *testing.T) (*db.DB, *db.Panel) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "panelcap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	info := &panelinfo.Info{
		Resolution:       ptr("2880x1800"),
		RRMinHz:          ptr("30"),
		RRMaxHz:          ptr("120"),
		PanelVendor:      ptr("SDC"),
		PanelPartNumber:  ptr("ATNA60YV02"),
		EDP15PanelReplay: ptr("Yes"),
		HDRSupported:     ptr(true),
		Sources:          []string{panelinfo.FormatEDID, panelinfo.FormatDPCD},
	}
	panel, err := database.CreatePanel("OLED <review>", db.ArtifactPaths{}, info)
	require.NoError(t, err)
	panel.Notes = "gamut values pending datasheet"
	require.NoError(t, database.UpdatePanel(panel))
	return database, panel
}

func TestGenerateHTML(t *testing.T) {
	database, panel := storedPanel(t)

	html, err := NewGenerator(database).GenerateHTML(panel.ID)
	require.NoError(t, err)

	assert.Contains(t, html, "OLED &lt;review&gt;")
	assert.NotContains(t, html, "OLED <review>")
	assert.Contains(t, html, "30-120 Hz")
	assert.Contains(t, html, "eDP1.5 Panel Replay")
	assert.Contains(t, html, "Sources: edid, dpcd")
	assert.Contains(t, html, "gamut values pending datasheet")
	assert.Contains(t, html, `class="unset" id="tcon_vendor"`)
	assert.Contains(t, html, "7 of ")
}

func TestGenerateHTMLSetOnly(t *testing.T) {
	database, panel := storedPanel(t)

	g := NewGenerator(database)
	g.SetOnly = true
	html, err := g.GenerateHTML(panel.ID)
	require.NoError(t, err)

	assert.NotContains(t, html, `id="tcon_vendor"`)
	assert.NotContains(t, html, "Power")
	assert.Contains(t, html, `class="set" id="hdr_supported"`)
}

func TestGenerateHTMLMissingPanel(t *testing.T) {
	database, _ := storedPanel(t)
	_, err := NewGenerator(database).GenerateHTML(9999)
	assert.ErrorIs(t, err, db.ErrPanelNotFound)
}

func TestRenderHTMLUnstored(t *testing.T) {
	panel := &db.Panel{Name: "adhoc", ParseID: "n/a"}
	html, err := NewGenerator(nil).RenderHTML(panel)
	require.NoError(t, err)
	assert.Contains(t, html, "Sources: none")
	assert.Contains(t, html, "0 of ")
	assert.NotContains(t, html, "Panel #")
}

func TestFormatFieldName(t *testing.T) {
	tests := map[string]string{
		"rr_min_hz":               "RR Min Hz",
		"psr2_et_supported":       "PSR2 ET Supported",
		"edp1_5_pr_et":            "eDP1.5 PR ET",
		"color_gamut_srgb":        "Color Gamut sRGB",
		"panel_tcon_release_year": "Panel TCON Release Year",
		"htotal":                  "HTotal",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatFieldName(in), in)
	}
}

func TestPDFOptionsPaper(t *testing.T) {
	opts := DefaultPDFOptions()
	assert.InDelta(t, 8.27, opts.PaperWidth, 0.001)

	require.NoError(t, opts.SetPaper(PaperLetter))
	assert.InDelta(t, 11.0, opts.PaperHeight, 0.001)

	assert.Error(t, opts.SetPaper("a3"))
}

func TestGeneratePDF(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping headless browser test in short mode")
	}
	found := false
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			found = true
			break
		}
	}
	if !found {
		t.Skip("no Chrome binary available")
	}

	database, panel := storedPanel(t)
	out := filepath.Join(t.TempDir(), "panel.pdf")

	opts := DefaultPDFOptions()
	require.NoError(t, NewGenerator(database).GeneratePDF(context.Background(), panel.ID, out, &opts))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), strings.TrimSpace(string(data[:min(len(data), 16)])))
}
