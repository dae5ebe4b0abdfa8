package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mscrnt/panelcap/pkg/db"
	"github.com/mscrnt/panelcap/pkg/panelinfo"
)

func testEDID() []byte {
	e := make([]byte, 128)
	copy(e, []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00})
	e[0x08], e[0x09] = 0x06, 0xAF // AUO
	e[0x12], e[0x13] = 1, 4
	e[0x14] = 0x95
	copy(e[0x36:], []byte{0x02, 0x3A, 0x80, 0x18, 0x71, 0x38, 0x2D, 0x40})
	return e
}

const testDPCD = "0x0: 0x14, 0x14, 0x02\n0x70: 0x03, 0x00, 0x00, 0x00, 0x00, 0x00\n"

func put(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
}

func openDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "panelcap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name, stem, format string
	}{
		{"lab1.edid", "lab1", panelinfo.FormatEDID},
		{"lab1.BIN", "lab1", panelinfo.FormatEDID},
		{"lab1.vbt", "lab1", panelinfo.FormatVBT},
		{"lab1.dpcd", "lab1", panelinfo.FormatDPCD},
		{"lab1.dpcd.txt", "lab1", panelinfo.FormatDPCD},
		{"lab1.txt", "lab1", panelinfo.FormatDPCD},
		{"notes.md", "", ""},
		{".edid", "", ""},
	}

	for _, tt := range tests {
		stem, format := Classify(tt.name)
		assert.Equal(t, tt.stem, stem, tt.name)
		assert.Equal(t, tt.format, format, tt.name)
	}
}

func TestDiscover(t *testing.T) {
	inbox := t.TempDir()
	put(t, inbox, "b.edid", testEDID())
	put(t, inbox, "b.dpcd.txt", []byte(testDPCD))
	put(t, inbox, "a.vbt", nil)
	put(t, inbox, "README.md", []byte("ignored"))
	put(t, inbox, ".hidden.edid", testEDID())
	require.NoError(t, os.Mkdir(filepath.Join(inbox, "c.edid"), 0o750))

	sets, err := Discover(inbox)
	require.NoError(t, err)
	require.Len(t, sets, 2)

	assert.Equal(t, "a", sets[0].Stem)
	assert.Equal(t, filepath.Join(inbox, "a.vbt"), sets[0].VBT)
	assert.Len(t, sets[0].Files(), 1)

	assert.Equal(t, "b", sets[1].Stem)
	assert.Equal(t, filepath.Join(inbox, "b.edid"), sets[1].EDID)
	assert.Equal(t, filepath.Join(inbox, "b.dpcd.txt"), sets[1].DPCD)
	assert.Empty(t, sets[1].VBT)
}

func TestDiscoverDuplicateFormat(t *testing.T) {
	inbox := t.TempDir()
	put(t, inbox, "a.dpcd", []byte(testDPCD))
	put(t, inbox, "a.txt", []byte(testDPCD))
	put(t, inbox, "a.edid", testEDID())
	put(t, inbox, "a.bin", testEDID())

	sets, err := Discover(inbox)
	require.NoError(t, err)
	require.Len(t, sets, 1)

	set := sets[0]
	assert.Equal(t, filepath.Join(inbox, "a.dpcd"), set.DPCD)
	assert.Equal(t, filepath.Join(inbox, "a.edid"), set.EDID)
	assert.ElementsMatch(t, []string{
		filepath.Join(inbox, "a.bin"),
		filepath.Join(inbox, "a.txt"),
	}, set.Duplicates)
	assert.Len(t, set.Files(), 4)

	err = set.Conflict()
	require.ErrorIs(t, err, ErrDuplicateArtifact)
	assert.ErrorContains(t, err, "a.dpcd")
	assert.ErrorContains(t, err, "a.txt")
}

func TestScannerFailsDuplicateSet(t *testing.T) {
	inbox := t.TempDir()
	put(t, inbox, "a.dpcd", []byte(testDPCD))
	put(t, inbox, "a.txt", []byte(testDPCD))

	database := openDB(t)
	scanner := NewScanner(inbox, database, zaptest.NewLogger(t))

	result, err := scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Equal(t, 1, result.Failed)

	assert.FileExists(t, filepath.Join(inbox, FailedDir, "a.dpcd"))
	assert.FileExists(t, filepath.Join(inbox, FailedDir, "a.txt"))
	assert.NoFileExists(t, filepath.Join(inbox, "a.dpcd"))
	assert.NoFileExists(t, filepath.Join(inbox, "a.txt"))

	reason, err := os.ReadFile(filepath.Join(inbox, FailedDir, "a.error"))
	require.NoError(t, err)
	assert.Contains(t, string(reason), "a.dpcd")
	assert.Contains(t, string(reason), "a.txt")

	panels, err := database.ListPanels(db.PanelFilter{})
	require.NoError(t, err)
	assert.Empty(t, panels)

	// the leftover file is not picked up as a new set
	result, err = scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Zero(t, result.Failed)
}

func TestScannerRun(t *testing.T) {
	inbox := filepath.Join(t.TempDir(), "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o750))
	put(t, inbox, "good.edid", testEDID())
	put(t, inbox, "good.dpcd", []byte(testDPCD))
	put(t, inbox, "bad.dpcd", []byte("0x0: 0x14\n"))

	database := openDB(t)
	scanner := NewScanner(inbox, database, zaptest.NewLogger(t))

	result, err := scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Panels, 1)

	panel := result.Panels[0]
	assert.Equal(t, "good", panel.Name)
	assert.Equal(t, "AUO", panel.Vendor)
	assert.Equal(t, "good.edid", panel.EDIDPath)
	assert.Equal(t, "good.dpcd", panel.DPCDPath)
	assert.Equal(t, "5.4 Gbps", panelinfo.Value(panel.Info.DataLinkRate))

	stored, err := database.GetPanelByParseID(panel.ParseID)
	require.NoError(t, err)
	assert.Equal(t, panel.ID, stored.ID)

	assert.FileExists(t, filepath.Join(inbox, ProcessedDir, "good.edid"))
	assert.FileExists(t, filepath.Join(inbox, ProcessedDir, "good.dpcd"))
	assert.FileExists(t, filepath.Join(inbox, FailedDir, "bad.dpcd"))
	assert.NoFileExists(t, filepath.Join(inbox, "good.edid"))

	reason, err := os.ReadFile(filepath.Join(inbox, FailedDir, "bad.error"))
	require.NoError(t, err)
	assert.Contains(t, string(reason), "DPCD")

	// nothing left to do
	result, err = scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Zero(t, result.Failed)
}

func TestScannerUndecodableSetFails(t *testing.T) {
	inbox := t.TempDir()
	put(t, inbox, "short.edid", testEDID()[:100])

	result, err := NewScanner(inbox, openDB(t), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.FileExists(t, filepath.Join(inbox, FailedDir, "short.edid"))
	assert.FileExists(t, filepath.Join(inbox, FailedDir, "short.error"))
}

func TestScannerRenamesOnCollision(t *testing.T) {
	inbox := t.TempDir()
	database := openDB(t)
	scanner := NewScanner(inbox, database, nil)

	for i := 0; i < 2; i++ {
		put(t, inbox, "dup.edid", testEDID())
		result, err := scanner.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, result.Processed)
	}

	entries, err := os.ReadDir(filepath.Join(inbox, ProcessedDir))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestScannerLocked(t *testing.T) {
	inbox := t.TempDir()
	put(t, inbox, "x.edid", testEDID())

	other := flock.New(filepath.Join(inbox, LockFile))
	ok, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = other.Unlock() }()

	_, err = NewScanner(inbox, openDB(t), nil).Run(context.Background())
	require.ErrorIs(t, err, ErrLocked)
	assert.FileExists(t, filepath.Join(inbox, "x.edid"))
}

func TestScannerCancelled(t *testing.T) {
	inbox := t.TempDir()
	put(t, inbox, "x.edid", testEDID())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewScanner(inbox, openDB(t), nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.Processed)
	assert.FileExists(t, filepath.Join(inbox, "x.edid"))
}

func TestNewRunnerInvalidSchedule(t *testing.T) {
	_, err := NewRunner(NewScanner(t.TempDir(), openDB(t), nil), "not a schedule", nil)
	require.Error(t, err)
}

func TestRunner(t *testing.T) {
	inbox := t.TempDir()
	put(t, inbox, "r.edid", testEDID())

	runner, err := NewRunner(NewScanner(inbox, openDB(t), nil), "@every 1h", zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, runner.Next().IsZero())
	runner.Start()
	defer runner.Stop(time.Second)
	assert.WithinDuration(t, time.Now().Add(time.Hour), runner.Next(), time.Minute)

	result, err := runner.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	last, runs := runner.Last()
	assert.Equal(t, 1, runs)
	assert.Same(t, result, last)
}
