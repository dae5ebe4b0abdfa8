package db

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mscrnt/panelcap/pkg/panelinfo"
)

const timeLayout = "2006-01-02 15:04:05"

// Export writes one panel in the requested format
func (db *DB) Export(w io.Writer, format ExportFormat, panelID int64) error {
	switch format {
	case ExportFormatCSV:
		return db.ExportCSV(w, panelID)
	case ExportFormatJSON:
		return db.ExportJSON(w, panelID)
	case ExportFormatYAML:
		return db.ExportYAML(w, panelID)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// ExportCSV writes one panel as Group, Field, Value rows
func (db *DB) ExportCSV(w io.Writer, panelID int64) error {
	panel, err := db.GetPanel(panelID)
	if err != nil {
		return fmt.Errorf("failed to get panel: %w", err)
	}

	csvWriter := csv.NewWriter(w)

	headers := []string{"Panel ID", "Name", "Group", "Field", "Value"}
	if err := csvWriter.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for _, f := range panelinfo.SetFields(&panel.Info.Info) {
		row := []string{
			strconv.FormatInt(panel.ID, 10),
			panel.Name,
			f.Group,
			f.Name,
			f.Value,
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// ExportAllCSV writes every panel as one row with a column per field
func (db *DB) ExportAllCSV(w io.Writer) error {
	panels, err := db.ListPanels(PanelFilter{})
	if err != nil {
		return fmt.Errorf("failed to list panels: %w", err)
	}

	csvWriter := csv.NewWriter(w)

	names := panelinfo.FieldNames()
	headers := append([]string{"Panel ID", "Parse ID", "Name", "Created", "Sources", "Notes"}, names...)
	if err := csvWriter.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for _, panel := range panels {
		row := []string{
			strconv.FormatInt(panel.ID, 10),
			panel.ParseID,
			panel.Name,
			panel.CreatedAt.Format(timeLayout),
			strings.Join(panel.Info.Sources, "+"),
			panel.Notes,
		}
		for _, f := range panelinfo.Fields(&panel.Info.Info) {
			row = append(row, f.Value)
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// ExportJSON writes one panel, Info included, as indented JSON
func (db *DB) ExportJSON(w io.Writer, panelID int64) error {
	panel, err := db.GetPanel(panelID)
	if err != nil {
		return fmt.Errorf("failed to get panel: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(panel); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// ExportAllJSON writes every panel as a JSON array
func (db *DB) ExportAllJSON(w io.Writer) error {
	panels, err := db.ListPanels(PanelFilter{})
	if err != nil {
		return fmt.Errorf("failed to list panels: %w", err)
	}
	if panels == nil {
		panels = []*Panel{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(panels); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// yamlPanel is the YAML export document. Fields are grouped by concern.
type yamlPanel struct {
	ID       int64                        `yaml:"id"`
	ParseID  string                       `yaml:"parse_id"`
	Name     string                       `yaml:"name"`
	Created  string                       `yaml:"created"`
	Sources  []string                     `yaml:"sources,omitempty"`
	Notes    string                       `yaml:"notes,omitempty"`
	Fields   map[string]map[string]string `yaml:"fields"`
	Artifact map[string]string            `yaml:"artifacts,omitempty"`
}

// ExportYAML writes one panel as a YAML document
func (db *DB) ExportYAML(w io.Writer, panelID int64) error {
	panel, err := db.GetPanel(panelID)
	if err != nil {
		return fmt.Errorf("failed to get panel: %w", err)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(toYAML(panel)); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

func toYAML(panel *Panel) yamlPanel {
	doc := yamlPanel{
		ID:      panel.ID,
		ParseID: panel.ParseID,
		Name:    panel.Name,
		Created: panel.CreatedAt.Format(timeLayout),
		Sources: panel.Info.Sources,
		Notes:   panel.Notes,
		Fields:  map[string]map[string]string{},
	}

	for _, f := range panelinfo.SetFields(&panel.Info.Info) {
		group, ok := doc.Fields[f.Group]
		if !ok {
			group = map[string]string{}
			doc.Fields[f.Group] = group
		}
		group[f.Name] = f.Value
	}

	artifacts := map[string]string{}
	for format, path := range map[string]string{
		panelinfo.FormatEDID: panel.EDIDPath,
		panelinfo.FormatVBT:  panel.VBTPath,
		panelinfo.FormatDPCD: panel.DPCDPath,
	} {
		if path != "" {
			artifacts[format] = path
		}
	}
	if len(artifacts) > 0 {
		doc.Artifact = artifacts
	}
	return doc
}
