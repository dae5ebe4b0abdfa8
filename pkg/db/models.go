package db

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mscrnt/panelcap/pkg/panelinfo"
)

var (
	// ErrPanelNotFound is returned when no panel matches the lookup
	ErrPanelNotFound = errors.New("panel not found")

	// ErrInvalidParseID is returned for parse IDs that are not UUIDs
	ErrInvalidParseID = errors.New("invalid parse id")
)

// Panel is one stored extraction result plus its review state
type Panel struct {
	ID          int64     `json:"id"`
	ParseID     string    `json:"parse_id"`
	Name        string    `json:"name"`
	EDIDPath    string    `json:"edid_path,omitempty"`
	VBTPath     string    `json:"vbt_path,omitempty"`
	DPCDPath    string    `json:"dpcd_path,omitempty"`
	Vendor      string    `json:"vendor,omitempty"`
	PartNumber  string    `json:"part_number,omitempty"`
	EdidVersion string    `json:"edid_version,omitempty"`
	Resolution  string    `json:"resolution,omitempty"`
	Info        InfoData  `json:"info"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ArtifactPaths names the input files a panel was extracted from
type ArtifactPaths struct {
	EDID string
	VBT  string
	DPCD string
}

// InfoData stores a panelinfo.Info as a JSON column
type InfoData struct {
	panelinfo.Info
}

// Value implements the driver.Valuer interface
func (d InfoData) Value() (driver.Value, error) {
	data, err := json.Marshal(d.Info)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface
func (d *InfoData) Scan(value interface{}) error {
	d.Info = panelinfo.Info{}
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan type %T into InfoData", value)
	}

	return json.Unmarshal(data, &d.Info)
}

// PanelFilter represents filters for querying panels
type PanelFilter struct {
	Vendor     string
	Name       string // substring match
	Resolution string
	Limit      int
	Offset     int
}

// ExportFormat represents the format for exporting data
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
	ExportFormatYAML ExportFormat = "yaml"
)

// ParseExportFormat validates a user-supplied format name
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case ExportFormatCSV, ExportFormatJSON, ExportFormatYAML:
		return ExportFormat(s), nil
	case "yml":
		return ExportFormatYAML, nil
	}
	return "", fmt.Errorf("unsupported export format %q (expected csv, json or yaml)", s)
}
