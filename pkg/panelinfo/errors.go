package panelinfo

import "errors"

var (
	// ErrEDIDTooShort is returned by DecodeEDID for images under 128 bytes.
	// ParseAll logs it and carries on with the other formats.
	ErrEDIDTooShort = errors.New("EDID length less than 128 bytes")

	// ErrDPCDNotFound is returned when the DPCD dump path does not name a file
	ErrDPCDNotFound = errors.New("DPCD file not found")

	// ErrInsufficientDPCD is returned when the dense DPCD image does not reach register 0x70
	ErrInsufficientDPCD = errors.New("DPCD data too short to contain register 0x70")

	// ErrMalformedDPCD is returned when a dump cannot be read as text lines
	ErrMalformedDPCD = errors.New("malformed DPCD dump")
)
