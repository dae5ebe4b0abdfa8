package panelinfo

import (
	"encoding/binary"
	"strings"
)

// Block is a read-only view over a register or EEPROM image. Every accessor
// reports whether the requested bytes lie inside the image, so callers never
// index past the end.
type Block struct {
	data []byte
}

// NewBlock wraps data without copying it
func NewBlock(data []byte) Block {
	return Block{data: data}
}

// Len returns the image size in bytes
func (b Block) Len() int {
	return len(b.data)
}

// Has reports whether offset off is inside the image
func (b Block) Has(off int) bool {
	return off >= 0 && off < len(b.data)
}

// Bytes returns the underlying image
func (b Block) Bytes() []byte {
	return b.data
}

// U8 reads the byte at off
func (b Block) U8(off int) (byte, bool) {
	if !b.Has(off) {
		return 0, false
	}
	return b.data[off], true
}

// Bits extracts bits hi..lo (inclusive, hi >= lo) of the byte at off,
// shifted down so bit lo becomes bit 0.
func (b Block) Bits(off int, hi, lo uint) (byte, bool) {
	v, ok := b.U8(off)
	if !ok || hi < lo || hi > 7 {
		return 0, false
	}
	width := hi - lo + 1
	return (v >> lo) & byte((1<<width)-1), true
}

// Bit reports whether bit n of the byte at off is set
func (b Block) Bit(off int, n uint) (bool, bool) {
	v, ok := b.Bits(off, n, n)
	return v == 1, ok
}

// Any reports whether any bit of mask is set in the byte at off
func (b Block) Any(off int, mask byte) (bool, bool) {
	v, ok := b.U8(off)
	return v&mask != 0, ok
}

// All reports whether every bit of mask is set in the byte at off
func (b Block) All(off int, mask byte) (bool, bool) {
	v, ok := b.U8(off)
	return v&mask == mask, ok
}

// U16LE reads a little-endian 16-bit value starting at off
func (b Block) U16LE(off int) (uint16, bool) {
	if !b.Has(off) || !b.Has(off+1) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b.data[off : off+2]), true
}

// U16BE reads a big-endian 16-bit value starting at off
func (b Block) U16BE(off int) (uint16, bool) {
	if !b.Has(off) || !b.Has(off+1) {
		return 0, false
	}
	return binary.BigEndian.Uint16(b.data[off : off+2]), true
}

// Slice returns the n-byte sub-block starting at off
func (b Block) Slice(off, n int) (Block, bool) {
	if n < 0 || !b.Has(off) || off+n > len(b.data) {
		return Block{}, false
	}
	return Block{data: b.data[off : off+n]}, true
}

// ASCII decodes n bytes at off as 7-bit ASCII and trims surrounding
// whitespace. Bytes above 0x7F decode as '?'.
func (b Block) ASCII(off, n int) (string, bool) {
	s, ok := b.Slice(off, n)
	if !ok {
		return "", false
	}
	var sb strings.Builder
	sb.Grow(n)
	for _, c := range s.data {
		if c > 0x7F {
			c = '?'
		}
		sb.WriteByte(c)
	}
	return strings.TrimSpace(sb.String()), true
}
