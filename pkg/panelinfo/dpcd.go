package panelinfo

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
)

// DPCD register offsets
const (
	DPCDMaxLinkRate     = 0x001 // MAX_LINK_RATE
	DPCDMaxLaneCount    = 0x002 // MAX_LANE_COUNT
	DPCDHDRCaps         = 0x01A // bit 6: static HDR metadata
	DPCDPSRSupport      = 0x070 // PSR_SUPPORT
	DPCDPSRCaps         = 0x075 // VRR flags, inverted polarity
	DPCDDSCMajor        = 0x160
	DPCDDSCMinor        = 0x161
	DPCDPanelReplayCaps = 0x300 // eDP 1.5 Panel Replay capability
	DPCDLRRCaps         = 0x314 // Intel LRR capability

	// MinDPCDSize is the smallest dense image that reaches register 0x70
	MinDPCDSize = DPCDPSRSupport + 1

	// MaxDPCDOffset bounds the 20-bit DPCD address space. Dump lines that
	// would write past it are ignored.
	MaxDPCDOffset = 0xFFFFF
)

// linkRates maps MAX_LINK_RATE codes to labels
var linkRates = map[byte]string{
	0x06: "1.6 Gbps",
	0x0A: "2.7 Gbps",
	0x14: "5.4 Gbps",
	0x1E: "8.1 Gbps",
}

var (
	dpcdLineRe = regexp.MustCompile(`0x([0-9A-Fa-f]+):\s*((?:0x[0-9A-Fa-f]{2},?\s*)+)`)
	dpcdByteRe = regexp.MustCompile(`0x([0-9A-Fa-f]{2})`)
)

// DPCDImage is the sparse offset to byte map read from a register dump
type DPCDImage struct {
	regs      map[int]byte
	maxOffset int
}

// NewDPCDImage returns an empty image
func NewDPCDImage() *DPCDImage {
	return &DPCDImage{regs: make(map[int]byte), maxOffset: -1}
}

// Set stores one register value. A later Set of the same offset wins.
func (d *DPCDImage) Set(off int, v byte) {
	d.regs[off] = v
	if off > d.maxOffset {
		d.maxOffset = off
	}
}

// Get returns the value stored at off, if any
func (d *DPCDImage) Get(off int) (byte, bool) {
	v, ok := d.regs[off]
	return v, ok
}

// Count returns the number of distinct offsets stored
func (d *DPCDImage) Count() int {
	return len(d.regs)
}

// MaxOffset returns the highest stored offset, or -1 for an empty image
func (d *DPCDImage) MaxOffset() int {
	return d.maxOffset
}

// Offsets returns the stored offsets in ascending order
func (d *DPCDImage) Offsets() []int {
	offs := make([]int, 0, len(d.regs))
	for off := range d.regs {
		offs = append(offs, off)
	}
	sort.Ints(offs)
	return offs
}

// Dense materializes the image as a zero-filled block running up to the
// highest stored offset.
func (d *DPCDImage) Dense() Block {
	buf := make([]byte, d.maxOffset+1)
	for off, v := range d.regs {
		buf[off] = v
	}
	return NewBlock(buf)
}

// ParseDPCDDump reads a text dump made of lines such as
//
//	0x70: 0x03, 0x00, 0x1f
//
// Each line holds a hex base offset and a run of byte literals stored at
// consecutive offsets. Lines that do not match are skipped.
func ParseDPCDDump(r io.Reader) (*DPCDImage, error) {
	img := NewDPCDImage()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		m := dpcdLineRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		base, err := strconv.ParseInt(m[1], 16, 32)
		if err != nil {
			continue
		}

		values := dpcdByteRe.FindAllStringSubmatch(m[2], -1)
		if int(base)+len(values)-1 > MaxDPCDOffset {
			continue
		}
		for i, v := range values {
			b, err := strconv.ParseUint(v[1], 16, 8)
			if err != nil {
				continue
			}
			img.Set(int(base)+i, byte(b))
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: %w", ErrMalformedDPCD, err)
		}
		return nil, fmt.Errorf("failed to read DPCD dump: %w", err)
	}

	return img, nil
}

// Prior carries the EDID-derived values the DPCD pass depends on
type Prior struct {
	EdidVersion     string
	IntelLRRVersion string
}

// PriorFrom extracts the DPCD prerequisites from an already merged record
func PriorFrom(info *Info) Prior {
	if info == nil {
		return Prior{}
	}
	return Prior{
		EdidVersion:     Value(info.EdidVersion),
		IntelLRRVersion: Value(info.IntelLRRVersion),
	}
}

// DPCDFields holds what DecodeDPCD extracted. Nil pointers were not decoded.
type DPCDFields struct {
	PSR1             bool
	PSR2             bool
	PSR2ET           bool
	VRR              *bool
	HDR              *bool
	LinkRate         *string
	LaneCount        *string
	DSCVersion       *string
	LRRVersion       *string
	PanelReplay      *string
	PanelReplayET    *string
	Size             int // dense image length
	DefinedRegisters int // offsets present in the dump
}

// DecodeDPCDFile reads and decodes a DPCD dump. The file must exist even
// when the caller already checked; a missing file is ErrDPCDNotFound.
func DecodeDPCDFile(path string, prior Prior) (DPCDFields, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DPCDFields{}, fmt.Errorf("%w: %s: %w", ErrDPCDNotFound, path, err)
		}
		return DPCDFields{}, fmt.Errorf("failed to stat DPCD file: %w", err)
	}
	if fi.IsDir() {
		return DPCDFields{}, fmt.Errorf("%w: %s is a directory", ErrDPCDNotFound, path)
	}

	file, err := os.Open(path) // #nosec G304 -- path is a caller-supplied dump file
	if err != nil {
		return DPCDFields{}, fmt.Errorf("failed to open DPCD file: %w", err)
	}
	defer func() { _ = file.Close() }()

	img, err := ParseDPCDDump(file)
	if err != nil {
		return DPCDFields{}, err
	}

	f, err := DecodeDPCD(img.Dense(), prior)
	if err != nil {
		return DPCDFields{}, err
	}
	f.DefinedRegisters = img.Count()
	return f, nil
}

// DecodeDPCD interprets a dense DPCD image. Register 0x70 is mandatory;
// every other register is optional and its field stays nil when the image
// is too short.
//
// Two checks are kept as the panels were characterised: the PSR2 test ORs
// bit 1, both of bits 0-1, and bit 2, and VRR is reported supported when
// bits 0 and 2 of register 0x75 are both clear.
func DecodeDPCD(b Block, prior Prior) (DPCDFields, error) {
	if b.Len() < MinDPCDSize {
		return DPCDFields{}, fmt.Errorf("%w: got %d bytes", ErrInsufficientDPCD, b.Len())
	}

	f := DPCDFields{Size: b.Len()}

	psr, _ := b.U8(DPCDPSRSupport)
	f.PSR1 = psr&0x01 != 0
	if psr&0x02 != 0 || psr&0x03 == 0x03 || psr&0x04 != 0 {
		f.PSR1 = true
		f.PSR2 = true
	}
	f.PSR2ET = psr&0x04 != 0

	if v, ok := b.U8(DPCDPSRCaps); ok {
		f.VRR = flag(v&0x05 == 0)
	}

	if hdr, ok := b.Bit(DPCDHDRCaps, 6); ok {
		f.HDR = flag(hdr)
	}

	if rate, ok := b.U8(DPCDMaxLinkRate); ok {
		f.LinkRate = str(LinkRateLabel(rate))
	}

	if lanes, ok := b.U8(DPCDMaxLaneCount); ok {
		f.LaneCount = str(strconv.Itoa(int(lanes)))
	}

	if b.Has(DPCDDSCMinor) {
		major, _ := b.U8(DPCDDSCMajor)
		minor, _ := b.U8(DPCDDSCMinor)
		if major != 0 || minor != 0 {
			f.DSCVersion = str(fmt.Sprintf("%d.%d", major, minor))
		}
	}

	if prior.IntelLRRVersion == "Yes" {
		if lrr25, ok := b.All(DPCDLRRCaps, 0x06); ok && lrr25 {
			f.LRRVersion = str("2.5")
		}
	}

	if prior.EdidVersion == "1.5" {
		if pr, ok := b.Bit(DPCDPanelReplayCaps, 0); ok && pr {
			f.PanelReplay = str("Yes")
		}
		if et, ok := b.Bit(DPCDPanelReplayCaps, 1); ok && et {
			f.PanelReplayET = str("Yes")
		}
	} else {
		f.PanelReplay = str("No")
		f.PanelReplayET = str("No")
	}

	return f, nil
}

// LinkRateLabel maps a MAX_LINK_RATE code to its label
func LinkRateLabel(code byte) string {
	if label, ok := linkRates[code]; ok {
		return label
	}
	return fmt.Sprintf("Unknown (0x%02X)", code)
}

// ApplyTo merges the decoded DPCD fields into info
func (f DPCDFields) ApplyTo(info *Info) {
	info.PSR1Supported = flag(f.PSR1)
	info.PSR2Supported = flag(f.PSR2)
	info.PSR2ETSupported = flag(f.PSR2ET)

	if f.VRR != nil {
		info.VRRSupported = flag(*f.VRR)
	}
	if f.HDR != nil {
		info.HDRSupported = flag(*f.HDR)
	}
	if f.LinkRate != nil {
		info.DataLinkRate = str(*f.LinkRate)
	}
	if f.LaneCount != nil {
		info.DataLaneCount = str(*f.LaneCount)
	}
	if f.DSCVersion != nil {
		info.VDSCVersion = str(*f.DSCVersion)
	}
	if f.LRRVersion != nil {
		info.IntelLRRVersion = str(*f.LRRVersion)
	}
	if f.PanelReplay != nil {
		info.EDP15PanelReplay = str(*f.PanelReplay)
	}
	if f.PanelReplayET != nil {
		info.EDP15PRET = str(*f.PanelReplayET)
	}
}
