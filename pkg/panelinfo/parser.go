// Package panelinfo extracts display panel capabilities from EDID, VBT and
// DPCD register dumps and merges them into a single Info record.
package panelinfo

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// Outcomes reported to a DecodeHook
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// DecodeHook observes each format pass, e.g. for metrics
type DecodeHook func(format, outcome string, elapsed time.Duration)

// Parser runs the three format decoders against one set of input files
type Parser struct {
	logger    *zap.Logger
	hook      DecodeHook
	decodeVBT func(path string) (VBTFields, error)
}

// Option configures a Parser
type Option func(*Parser)

// WithDecodeHook registers a hook called after every format pass
func WithDecodeHook(hook DecodeHook) Option {
	return func(p *Parser) {
		p.hook = hook
	}
}

// NewParser creates a parser. A nil logger discards diagnostics.
func NewParser(logger *zap.Logger, opts ...Option) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Parser{logger: logger, decodeVBT: DecodeVBT}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseAll decodes whichever of the three files exist and returns the
// merged record. Empty or missing paths are skipped.
//
// A truncated EDID is logged and skipped so VBT and DPCD still run. DPCD
// failures are returned as-is and no record is returned with them.
func ParseAll(edidPath, vbtPath, dpcdPath string) (*Info, error) {
	return NewParser(nil).ParseAll(edidPath, vbtPath, dpcdPath)
}

// ParseAll decodes whichever of the three files exist and returns the
// merged record. See the package-level ParseAll.
func (p *Parser) ParseAll(edidPath, vbtPath, dpcdPath string) (*Info, error) {
	info := &Info{}

	if isRegularFile(edidPath) {
		if err := p.parseEDID(edidPath, info); err != nil {
			return nil, err
		}
	} else {
		p.observe(FormatEDID, OutcomeSkipped, 0)
	}

	if isRegularFile(vbtPath) {
		if err := p.parseVBT(vbtPath, info); err != nil {
			return nil, err
		}
	} else {
		p.observe(FormatVBT, OutcomeSkipped, 0)
	}

	if isRegularFile(dpcdPath) {
		if err := p.parseDPCD(dpcdPath, info); err != nil {
			return nil, err
		}
	} else {
		p.observe(FormatDPCD, OutcomeSkipped, 0)
	}

	return info, nil
}

func (p *Parser) parseEDID(path string, info *Info) error {
	start := time.Now()

	data, err := os.ReadFile(path) // #nosec G304 -- path is a caller-supplied EDID file
	if err != nil {
		p.observe(FormatEDID, OutcomeError, time.Since(start))
		return fmt.Errorf("failed to read EDID: %w", err)
	}

	fields, err := DecodeEDID(data)
	if errors.Is(err, ErrEDIDTooShort) {
		p.logger.Warn("EDID length less than 128B, skipping EDID",
			zap.String("path", path),
			zap.Int("length", len(data)),
		)
		p.observe(FormatEDID, OutcomeError, time.Since(start))
		return nil
	}
	if err != nil {
		p.observe(FormatEDID, OutcomeError, time.Since(start))
		return err
	}

	for _, msg := range fields.Diagnostics {
		p.logger.Warn(msg, zap.String("path", path))
	}

	fields.ApplyTo(info)
	info.Sources = append(info.Sources, FormatEDID)
	p.logger.Debug("decoded EDID",
		zap.String("path", path),
		zap.String("version", fields.Version),
		zap.String("vendor", fields.Vendor),
	)
	p.observe(FormatEDID, OutcomeOK, time.Since(start))
	return nil
}

func (p *Parser) parseVBT(path string, info *Info) error {
	start := time.Now()
	fields, err := p.decodeVBT(path)
	if err != nil {
		p.logger.Error("VBT decoding failed", zap.String("path", path), zap.Error(err))
		p.observe(FormatVBT, OutcomeError, time.Since(start))
		return fmt.Errorf("failed to decode VBT: %w", err)
	}
	fields.ApplyTo(info)
	info.Sources = append(info.Sources, FormatVBT)
	p.logger.Debug("VBT decoding not implemented, no fields extracted", zap.String("path", path))
	p.observe(FormatVBT, OutcomeOK, time.Since(start))
	return nil
}

func (p *Parser) parseDPCD(path string, info *Info) error {
	start := time.Now()

	fields, err := DecodeDPCDFile(path, PriorFrom(info))
	if err != nil {
		p.logger.Error("DPCD decoding failed", zap.String("path", path), zap.Error(err))
		p.observe(FormatDPCD, OutcomeError, time.Since(start))
		return err
	}

	fields.ApplyTo(info)
	info.Sources = append(info.Sources, FormatDPCD)
	p.logger.Debug("decoded DPCD",
		zap.String("path", path),
		zap.Int("size", fields.Size),
		zap.Int("registers", fields.DefinedRegisters),
	)
	p.observe(FormatDPCD, OutcomeOK, time.Since(start))
	return nil
}

func (p *Parser) observe(format, outcome string, elapsed time.Duration) {
	if p.hook != nil {
		p.hook(format, outcome, elapsed)
	}
}

func isRegularFile(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular()
}
