package panelinfo

import (
	"fmt"
	"math"
	"strconv"
)

// EDID base block offsets (VESA E-EDID 1.4)
const (
	EDIDBlockSize = 128

	EDIDManufacturerID = 0x08 // Manufacturer PNP ID, big-endian, 3x5 bits
	EDIDVersion        = 0x12 // EDID version number
	EDIDRevision       = 0x13 // EDID revision number
	EDIDVideoInput     = 0x14 // Video input parameters bitmap
	EDIDWidthCM        = 0x15 // Horizontal screen size in cm
	EDIDHeightCM       = 0x16 // Vertical screen size in cm
	EDIDFeatureSupport = 0x18 // Feature support bitmap

	EDIDDescriptorStart   = 0x36 // First 18-byte descriptor slot
	EDIDDescriptorSize    = 18
	EDIDTimingScanEnd     = 0x6F // Last offset a DTD slot may start at
	EDIDDescriptorScanEnd = 0x6C // Last offset a display descriptor slot may start at
)

// Display descriptor tags (byte 3 of a slot whose first two bytes are zero)
const (
	DescriptorSerial      = 0xFF // Display product serial number
	DescriptorProductName = 0xFC // Display product name
	DescriptorRangeLimits = 0xFD // Display range limits
)

// colorDepths maps the 3-bit digital input bit depth code
var colorDepths = map[byte]string{
	1: "6 bpc",
	2: "8 bpc",
	3: "10 bpc",
	4: "12 bpc",
	5: "14 bpc",
	6: "16 bpc",
}

// DetailedTiming is the first Detailed Timing Descriptor of the base block
type DetailedTiming struct {
	Offset     int
	PixelClock uint16 // 10 kHz units
	HActive    int
	HBlank     int
	VActive    int
	VBlank     int
}

// HTotal returns active plus blanking pixels per line
func (t DetailedTiming) HTotal() int { return t.HActive + t.HBlank }

// VTotal returns active plus blanking lines per frame
func (t DetailedTiming) VTotal() int { return t.VActive + t.VBlank }

// Resolution formats the active area as "HxV"
func (t DetailedTiming) Resolution() string {
	return fmt.Sprintf("%dx%d", t.HActive, t.VActive)
}

// AspectRatio reduces the active area by its GCD, or returns "N/A" when
// either dimension is zero.
func (t DetailedTiming) AspectRatio() string {
	if t.HActive == 0 || t.VActive == 0 {
		return "N/A"
	}
	g := gcd(t.HActive, t.VActive)
	return fmt.Sprintf("%d:%d", t.HActive/g, t.VActive/g)
}

// RefreshHz derives the refresh rate from the pixel clock and totals
func (t DetailedTiming) RefreshHz() (float64, bool) {
	ht, vt := t.HTotal(), t.VTotal()
	if t.PixelClock == 0 || ht <= 0 || vt <= 0 {
		return 0, false
	}
	return float64(t.PixelClock) * 10000.0 / float64(ht*vt), true
}

// RangeLimits is the Display Range Limits descriptor
type RangeLimits struct {
	Offset     int
	MinVHz     byte
	MaxVHz     byte
	Continuous bool
}

// Descriptor is a decoded name or serial display descriptor
type Descriptor struct {
	Tag  byte
	Text string
}

// EDIDFields holds everything DecodeEDID extracted from one base block.
// ApplyTo merges it into an Info.
type EDIDFields struct {
	Version        string
	ColorDepth     *string // nil for analog input
	ScreenSizeInch *string // nil when either dimension is zero
	Timing         *DetailedTiming
	RangeLimits    *RangeLimits
	SRGB           string
	Descriptors    []Descriptor // name and serial descriptors in slot order
	LRR            string
	Vendor         string
	Diagnostics    []string
}

// DecodeEDID decodes an EDID base block. Bytes past the first 128 are
// ignored. Images shorter than 128 bytes return ErrEDIDTooShort and no fields.
func DecodeEDID(data []byte) (EDIDFields, error) {
	if len(data) < EDIDBlockSize {
		return EDIDFields{}, fmt.Errorf("%w: got %d", ErrEDIDTooShort, len(data))
	}

	b := NewBlock(data[:EDIDBlockSize])
	f := EDIDFields{}

	major, _ := b.U8(EDIDVersion)
	minor, _ := b.U8(EDIDRevision)
	f.Version = fmt.Sprintf("%d.%d", major, minor)

	if digital, _ := b.Bit(EDIDVideoInput, 7); digital {
		code, _ := b.Bits(EDIDVideoInput, 6, 4)
		depth, ok := colorDepths[code]
		if !ok {
			depth = "Not Specified"
		}
		f.ColorDepth = str(depth)
	}

	widthCM, _ := b.U8(EDIDWidthCM)
	heightCM, _ := b.U8(EDIDHeightCM)
	if widthCM > 0 && heightCM > 0 {
		w, h := float64(widthCM), float64(heightCM)
		diagonal := math.Sqrt(w*w+h*h) / 2.54
		f.ScreenSizeInch = str(strconv.Itoa(int(math.Round(diagonal))))
	}

	f.Timing = findDetailedTiming(b)
	if f.Timing == nil {
		f.Diagnostics = append(f.Diagnostics, "no valid DTD found, resolution info may be missing")
	}

	f.RangeLimits = findRangeLimits(b)

	if srgb, _ := b.Bit(EDIDFeatureSupport, 0); srgb {
		f.SRGB = "Yes"
	} else {
		f.SRGB = "No"
	}

	f.Descriptors = findTextDescriptors(b)

	if features, _ := b.U8(EDIDFeatureSupport); features == 0 {
		f.LRR = "Not Supported"
	} else {
		f.LRR = "Yes"
	}

	mfg, _ := b.U16BE(EDIDManufacturerID)
	f.Vendor = DecodePNPID(mfg)

	return f, nil
}

// DecodePNPID unpacks a manufacturer ID into its three-letter PNP code
func DecodePNPID(code uint16) string {
	return string([]byte{
		byte((code>>10)&0x1F) + '@',
		byte((code>>5)&0x1F) + '@',
		byte(code&0x1F) + '@',
	})
}

// findDetailedTiming returns the first slot whose pixel clock bytes are not
// both zero.
func findDetailedTiming(b Block) *DetailedTiming {
	for off := EDIDDescriptorStart; off <= EDIDTimingScanEnd; off += EDIDDescriptorSize {
		slot, ok := b.Slice(off, EDIDDescriptorSize)
		if !ok {
			break
		}
		lo, _ := slot.U8(0)
		hi, _ := slot.U8(1)
		if lo == 0 && hi == 0 {
			continue
		}

		t := &DetailedTiming{Offset: off}
		t.PixelClock, _ = slot.U16LE(0)

		hActiveLo, _ := slot.U8(2)
		hBlankLo, _ := slot.U8(3)
		hActiveHi, _ := slot.Bits(4, 7, 4)
		hBlankHi, _ := slot.Bits(4, 3, 0)
		vActiveLo, _ := slot.U8(5)
		vBlankLo, _ := slot.U8(6)
		vActiveHi, _ := slot.Bits(7, 7, 4)
		vBlankHi, _ := slot.Bits(7, 3, 0)

		t.HActive = int(hActiveHi)<<8 | int(hActiveLo)
		t.HBlank = int(hBlankHi)<<8 | int(hBlankLo)
		t.VActive = int(vActiveHi)<<8 | int(vActiveLo)
		t.VBlank = int(vBlankHi)<<8 | int(vBlankLo)
		return t
	}
	return nil
}

// findRangeLimits returns the first slot tagged 0xFD. The slot header is
// not checked, only the tag byte.
func findRangeLimits(b Block) *RangeLimits {
	for off := EDIDDescriptorStart; off <= EDIDDescriptorScanEnd; off += EDIDDescriptorSize {
		tag, ok := b.U8(off + 3)
		if !ok || tag != DescriptorRangeLimits {
			continue
		}
		r := &RangeLimits{Offset: off}
		r.MinVHz, _ = b.U8(off + 5)
		r.MaxVHz, _ = b.U8(off + 6)
		r.Continuous, _ = b.Bit(off+10, 1)
		return r
	}
	return nil
}

func findTextDescriptors(b Block) []Descriptor {
	var out []Descriptor
	for off := EDIDDescriptorStart; off <= EDIDDescriptorScanEnd; off += EDIDDescriptorSize {
		slot, ok := b.Slice(off, EDIDDescriptorSize)
		if !ok {
			break
		}
		lo, _ := slot.U8(0)
		hi, _ := slot.U8(1)
		if lo != 0 || hi != 0 {
			continue
		}
		tag, _ := slot.U8(3)
		if tag != DescriptorSerial && tag != DescriptorProductName {
			continue
		}
		text, _ := slot.ASCII(5, 13)
		out = append(out, Descriptor{Tag: tag, Text: text})
	}
	return out
}

// ApplyTo merges the decoded EDID fields into info.
//
// Precedence: Range Limits refresh values replace the DTD-derived ones, and
// the last name or serial descriptor wins. A blank descriptor text still
// sets the port number but never the part number.
func (f EDIDFields) ApplyTo(info *Info) {
	info.EdidVersion = str(f.Version)
	if f.ColorDepth != nil {
		info.ColorDepth = str(*f.ColorDepth)
	}
	if f.ScreenSizeInch != nil {
		info.ScreenSizeInch = str(*f.ScreenSizeInch)
	}

	if t := f.Timing; t != nil {
		info.Resolution = str(t.Resolution())
		info.HTotal = str(strconv.Itoa(t.HTotal()))
		info.VTotal = str(strconv.Itoa(t.VTotal()))
		info.AspectRatio = str(t.AspectRatio())
		if hz, ok := t.RefreshHz(); ok {
			info.RRMinHz = str(strconv.FormatFloat(hz, 'f', 2, 64))
			info.RRMaxHz = str(strconv.FormatFloat(hz, 'f', 2, 64))
		}
	}

	if r := f.RangeLimits; r != nil {
		info.RRMinHz = str(strconv.Itoa(int(r.MinVHz)))
		info.RRMaxHz = str(strconv.Itoa(int(r.MaxVHz)))
		info.ContinuousFreqSupported = flag(r.Continuous)
	}

	if f.SRGB != "" {
		info.ColorGamutSRGB = str(f.SRGB)
	}

	for _, d := range f.Descriptors {
		info.PanelPortNumber = str(d.Text)
		if d.Text != "" {
			info.PanelPartNumber = str(d.Text)
		}
	}

	if f.LRR != "" {
		info.IntelLRRVersion = str(f.LRR)
	}
	if f.Vendor != "" {
		info.PanelVendor = str(f.Vendor)
	}
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
