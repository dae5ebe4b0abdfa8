package panelinfo

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dpcdDump renders one "0xOFF: 0xBB" line per register
func dpcdDump(regs map[int]byte) string {
	offs := make([]int, 0, len(regs))
	for off := range regs {
		offs = append(offs, off)
	}
	sort.Ints(offs)

	var sb strings.Builder
	for _, off := range offs {
		fmt.Fprintf(&sb, "0x%X: 0x%02X\n", off, regs[off])
	}
	return sb.String()
}

// denseWith returns a zero block of size n with regs applied
func denseWith(n int, regs map[int]byte) Block {
	buf := make([]byte, n)
	for off, v := range regs {
		buf[off] = v
	}
	return NewBlock(buf)
}

func TestParseDPCDDump(t *testing.T) {
	dump := `DPCD dump for eDP-1
0x0: 0x14, 0x1e, 0xc4, 0x01
0x70: 0x03,0x00, 0x00
  0x1A: 0x40
garbage line 0xZZ: 0x11
0x2: 0x02
0x300: 0x03
`
	img, err := ParseDPCDDump(strings.NewReader(dump))
	require.NoError(t, err)

	assert.Equal(t, 0x300, img.MaxOffset())
	assert.Equal(t, []int{0x00, 0x01, 0x02, 0x03, 0x1A, 0x70, 0x71, 0x72, 0x300}, img.Offsets())

	v, ok := img.Get(0x01)
	require.True(t, ok)
	assert.Equal(t, byte(0x1E), v)

	// later line wins
	v, _ = img.Get(0x02)
	assert.Equal(t, byte(0x02), v)

	dense := img.Dense()
	assert.Equal(t, 0x301, dense.Len())
	gap, ok := dense.U8(0x200)
	require.True(t, ok)
	assert.Zero(t, gap)
	last, _ := dense.U8(0x300)
	assert.Equal(t, byte(0x03), last)
}

func TestParseDPCDDumpEmpty(t *testing.T) {
	img, err := ParseDPCDDump(strings.NewReader("no registers here\n"))
	require.NoError(t, err)
	assert.Equal(t, -1, img.MaxOffset())
	assert.Zero(t, img.Dense().Len())

	_, err = DecodeDPCD(img.Dense(), Prior{})
	require.ErrorIs(t, err, ErrInsufficientDPCD)
}

func TestParseDPCDDumpLineTooLong(t *testing.T) {
	line := "0x0: " + strings.Repeat("0x00, ", 800*1024) + "\n"
	_, err := ParseDPCDDump(strings.NewReader(line))
	require.ErrorIs(t, err, ErrMalformedDPCD)
	require.ErrorIs(t, err, bufio.ErrTooLong)
}

func TestParseDPCDDumpIgnoresOutOfRangeOffsets(t *testing.T) {
	img, err := ParseDPCDDump(strings.NewReader("0x70: 0x01\n0x7FFFFFFF: 0x01\n0x100000: 0x01\n"))
	require.NoError(t, err)
	assert.Equal(t, 0x70, img.MaxOffset())
}

func TestDecodeDPCDPSR(t *testing.T) {
	tests := []struct {
		reg                byte
		psr1, psr2, psr2ET bool
	}{
		{0x00, false, false, false},
		{0x01, true, false, false},
		{0x02, true, true, false},
		{0x03, true, true, false},
		{0x04, true, true, true},
		{0x05, true, true, true},
		{0x08, false, false, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("0x%02X", tt.reg), func(t *testing.T) {
			f, err := DecodeDPCD(denseWith(MinDPCDSize, map[int]byte{DPCDPSRSupport: tt.reg}), Prior{})
			require.NoError(t, err)
			assert.Equal(t, tt.psr1, f.PSR1, "PSR1")
			assert.Equal(t, tt.psr2, f.PSR2, "PSR2")
			assert.Equal(t, tt.psr2ET, f.PSR2ET, "PSR2 ET")
		})
	}
}

func TestDecodeDPCDVRRInvertedPolarity(t *testing.T) {
	tests := []struct {
		reg  byte
		want bool
	}{
		{0x00, true},
		{0x01, false},
		{0x02, true},
		{0x04, false},
		{0x05, false},
		{0xFA, true},
	}

	for _, tt := range tests {
		f, err := DecodeDPCD(denseWith(0x76, map[int]byte{DPCDPSRCaps: tt.reg}), Prior{})
		require.NoError(t, err)
		require.NotNil(t, f.VRR)
		assert.Equal(t, tt.want, *f.VRR, "reg 0x75 = 0x%02X", tt.reg)
	}

	// 0x75 is past the end of a minimal image
	f, err := DecodeDPCD(denseWith(MinDPCDSize, nil), Prior{})
	require.NoError(t, err)
	assert.Nil(t, f.VRR)
}

func TestDecodeDPCDInsufficientData(t *testing.T) {
	for _, n := range []int{0, 1, 0x70} {
		_, err := DecodeDPCD(denseWith(n, nil), Prior{})
		require.ErrorIs(t, err, ErrInsufficientDPCD, "size %d", n)
	}

	f, err := DecodeDPCD(denseWith(MinDPCDSize, nil), Prior{})
	require.NoError(t, err)
	assert.False(t, f.PSR1)
	assert.False(t, f.PSR2)
	assert.False(t, f.PSR2ET)
	require.NotNil(t, f.HDR)
	assert.False(t, *f.HDR)
	assert.Nil(t, f.DSCVersion)
	assert.Nil(t, f.LRRVersion)
}

func TestDecodeDPCDLink(t *testing.T) {
	tests := []struct {
		code byte
		want string
	}{
		{0x06, "1.6 Gbps"},
		{0x0A, "2.7 Gbps"},
		{0x14, "5.4 Gbps"},
		{0x1E, "8.1 Gbps"},
		{0x0C, "Unknown (0x0C)"},
		{0x00, "Unknown (0x00)"},
	}

	for _, tt := range tests {
		f, err := DecodeDPCD(denseWith(MinDPCDSize, map[int]byte{
			DPCDMaxLinkRate:  tt.code,
			DPCDMaxLaneCount: 0x84,
		}), Prior{})
		require.NoError(t, err)
		assert.Equal(t, tt.want, Value(f.LinkRate))
		assert.Equal(t, "132", Value(f.LaneCount))
	}
}

func TestDecodeDPCDHDR(t *testing.T) {
	f, err := DecodeDPCD(denseWith(MinDPCDSize, map[int]byte{DPCDHDRCaps: 0x40}), Prior{})
	require.NoError(t, err)
	require.NotNil(t, f.HDR)
	assert.True(t, *f.HDR)
}

func TestDecodeDPCDDSC(t *testing.T) {
	f, err := DecodeDPCD(denseWith(0x162, map[int]byte{DPCDDSCMajor: 1, DPCDDSCMinor: 2}), Prior{})
	require.NoError(t, err)
	assert.Equal(t, "1.2", Value(f.DSCVersion))

	f, err = DecodeDPCD(denseWith(0x162, nil), Prior{})
	require.NoError(t, err)
	assert.Nil(t, f.DSCVersion)

	// 0x161 missing
	f, err = DecodeDPCD(denseWith(0x161, map[int]byte{DPCDDSCMajor: 1}), Prior{})
	require.NoError(t, err)
	assert.Nil(t, f.DSCVersion)
}

func TestDecodeDPCDLRR(t *testing.T) {
	tests := []struct {
		name  string
		prior string
		reg   byte
		size  int
		want  *string
	}{
		{"upgraded", "Yes", 0x06, 0x315, str("2.5")},
		{"extra bits", "Yes", 0xFF, 0x315, str("2.5")},
		{"one bit only", "Yes", 0x02, 0x315, nil},
		{"not supported", "Not Supported", 0x06, 0x315, nil},
		{"no edid", "", 0x06, 0x315, nil},
		{"register missing", "Yes", 0x00, 0x200, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regs := map[int]byte{}
			if tt.size > DPCDLRRCaps {
				regs[DPCDLRRCaps] = tt.reg
			}
			f, err := DecodeDPCD(denseWith(tt.size, regs), Prior{IntelLRRVersion: tt.prior})
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.LRRVersion)
		})
	}
}

func TestDecodeDPCDPanelReplay(t *testing.T) {
	tests := []struct {
		name       string
		version    string
		reg        byte
		size       int
		replay, et *string
	}{
		{"edp 1.5 both", "1.5", 0x03, 0x301, str("Yes"), str("Yes")},
		{"edp 1.5 replay only", "1.5", 0x01, 0x301, str("Yes"), nil},
		{"edp 1.5 et only", "1.5", 0x02, 0x301, nil, str("Yes")},
		{"edp 1.5 short image", "1.5", 0x00, MinDPCDSize, nil, nil},
		{"edid 1.4", "1.4", 0x03, 0x301, str("No"), str("No")},
		{"no edid", "", 0x03, 0x301, str("No"), str("No")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regs := map[int]byte{}
			if tt.size > DPCDPanelReplayCaps {
				regs[DPCDPanelReplayCaps] = tt.reg
			}
			f, err := DecodeDPCD(denseWith(tt.size, regs), Prior{EdidVersion: tt.version})
			require.NoError(t, err)
			assert.Equal(t, tt.replay, f.PanelReplay)
			assert.Equal(t, tt.et, f.PanelReplayET)
		})
	}
}

func TestDecodeDPCDFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing", func(t *testing.T) {
		_, err := DecodeDPCDFile(filepath.Join(dir, "missing.txt"), Prior{})
		require.ErrorIs(t, err, ErrDPCDNotFound)
		require.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := DecodeDPCDFile(dir, Prior{})
		require.ErrorIs(t, err, ErrDPCDNotFound)
	})

	t.Run("too short", func(t *testing.T) {
		path := filepath.Join(dir, "short.txt")
		require.NoError(t, os.WriteFile(path, []byte("0x0: 0x14, 0x1e, 0x04\n"), 0o600))
		_, err := DecodeDPCDFile(path, Prior{})
		require.ErrorIs(t, err, ErrInsufficientDPCD)
	})

	t.Run("decoded", func(t *testing.T) {
		path := filepath.Join(dir, "dpcd.txt")
		dump := dpcdDump(map[int]byte{
			DPCDMaxLinkRate:  0x1E,
			DPCDMaxLaneCount: 0x04,
			DPCDHDRCaps:      0x40,
			DPCDPSRSupport:   0x04,
			DPCDPSRCaps:      0x00,
		})
		require.NoError(t, os.WriteFile(path, []byte(dump), 0o600))

		f, err := DecodeDPCDFile(path, Prior{EdidVersion: "1.4"})
		require.NoError(t, err)
		assert.True(t, f.PSR1)
		assert.True(t, f.PSR2)
		assert.True(t, f.PSR2ET)
		assert.Equal(t, "8.1 Gbps", Value(f.LinkRate))
		assert.Equal(t, "4", Value(f.LaneCount))
		assert.Equal(t, 0x76, f.Size)
		assert.Equal(t, 5, f.DefinedRegisters)
	})
}
