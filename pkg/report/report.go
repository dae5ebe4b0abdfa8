package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/mscrnt/panelcap/pkg/db"
	"github.com/mscrnt/panelcap/pkg/panelinfo"
)

// ReportData contains all data needed for report generation
type ReportData struct {
	Panel       *db.Panel
	GeneratedAt time.Time
	Summary     []SummaryCard
	Groups      []FieldGroup
	SetCount    int
	TotalCount  int
}

// SummaryCard is one headline value shown above the field tables
type SummaryCard struct {
	Title string
	Value string
}

// FieldGroup groups the fields of one concern
type FieldGroup struct {
	Name   string
	Fields []FieldDisplay
}

// FieldDisplay represents a field for display
type FieldDisplay struct {
	Label string
	Name  string
	Value string
	Set   bool
}

// groupTitles orders and names the report sections
var groupTitles = []struct {
	group string
	title string
}{
	{panelinfo.GroupIdentity, "Identity and Geometry"},
	{panelinfo.GroupTiming, "Timing"},
	{panelinfo.GroupLink, "Link"},
	{panelinfo.GroupFeatures, "Features"},
	{panelinfo.GroupColor, "Color Gamut"},
	{panelinfo.GroupBacklight, "Backlight"},
	{panelinfo.GroupVendor, "Panel and TCON Vendor"},
	{panelinfo.GroupTouch, "Touch"},
	{panelinfo.GroupPower, "Power"},
}

// Generator creates review sheets from stored panels
type Generator struct {
	database *db.DB

	// SetOnly hides fields no input decoded
	SetOnly bool
}

// NewGenerator creates a new report generator
func NewGenerator(database *db.DB) *Generator {
	return &Generator{
		database: database,
	}
}

// GenerateHTML generates an HTML review sheet for a stored panel
func (g *Generator) GenerateHTML(panelID int64) (string, error) {
	panel, err := g.database.GetPanel(panelID)
	if err != nil {
		return "", fmt.Errorf("failed to get panel: %w", err)
	}
	return g.RenderHTML(panel)
}

// RenderHTML renders a panel that need not be stored
func (g *Generator) RenderHTML(panel *db.Panel) (string, error) {
	data := g.buildReportData(panel)

	tmpl, err := loadHTMLTemplate()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

func (g *Generator) buildReportData(panel *db.Panel) *ReportData {
	info := &panel.Info.Info
	data := &ReportData{
		Panel:       panel,
		GeneratedAt: time.Now(),
		Summary: []SummaryCard{
			{"Vendor", orDash(panelinfo.Value(info.PanelVendor))},
			{"Part Number", orDash(panelinfo.Value(info.PanelPartNumber))},
			{"Resolution", orDash(panelinfo.Value(info.Resolution))},
			{"Refresh Range", refreshRange(info)},
		},
	}

	byGroup := map[string][]FieldDisplay{}
	for _, f := range panelinfo.Fields(info) {
		data.TotalCount++
		if f.Set {
			data.SetCount++
		} else if g.SetOnly {
			continue
		}
		byGroup[f.Group] = append(byGroup[f.Group], FieldDisplay{
			Label: formatFieldName(f.Name),
			Name:  f.Name,
			Value: orDash(f.Value),
			Set:   f.Set,
		})
	}

	for _, gt := range groupTitles {
		if fields := byGroup[gt.group]; len(fields) > 0 {
			data.Groups = append(data.Groups, FieldGroup{Name: gt.title, Fields: fields})
		}
	}
	return data
}

func loadHTMLTemplate() (*template.Template, error) {
	funcMap := template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05")
		},
		"join": strings.Join,
		"rowClass": func(set bool) string {
			if set {
				return "set"
			}
			return "unset"
		},
	}

	tmpl, err := template.New("report").Funcs(funcMap).Parse(htmlTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return tmpl, nil
}

func refreshRange(info *panelinfo.Info) string {
	lo, hi := panelinfo.Value(info.RRMinHz), panelinfo.Value(info.RRMaxHz)
	switch {
	case lo == "" && hi == "":
		return "-"
	case lo == hi:
		return lo + " Hz"
	}
	return fmt.Sprintf("%s-%s Hz", orDash(lo), orDash(hi))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// fieldAcronyms are rendered upper-case (or as written here) in labels
var fieldAcronyms = map[string]string{
	"edid": "EDID", "rr": "RR", "hz": "Hz", "psr1": "PSR1", "psr2": "PSR2",
	"et": "ET", "lrr": "LRR", "hdr": "HDR", "vrr": "VRR", "vdsc": "VDSC",
	"cog": "CoG", "mso": "MSO", "iidt": "IIDT", "ubrr": "UBRR", "drrs": "DRRS",
	"xpst": "XPST", "opst": "OPST", "elp": "ELP", "de": "DE", "epsm60": "EPSM60",
	"eg": "EG", "edp1": "eDP1", "pr": "PR", "cmrr": "CMRR", "assdp": "AS SDP",
	"lobf": "LOBF", "srgb": "sRGB", "dci": "DCI", "p3": "P3", "rgb": "RGB",
	"ntsc": "NTSC", "tcon": "TCON", "hw": "HW", "dc": "DC", "vbatt": "VBATT",
	"pol": "POL", "frc": "FRC", "htotal": "HTotal", "vtotal": "VTotal",
}

// formatFieldName turns "rr_min_hz" into "RR Min Hz"
func formatFieldName(name string) string {
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if a, ok := fieldAcronyms[p]; ok {
			parts[i] = a
			continue
		}
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	label := strings.Join(parts, " ")
	return strings.ReplaceAll(label, "eDP1 5", "eDP1.5")
}

// htmlTemplate is the default review sheet template
const htmlTemplate = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Panel Review - {{.Panel.Name}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            line-height: 1.5;
            color: #333;
            max-width: 1100px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f5f5f5;
        }
        .container {
            background-color: white;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            padding: 30px;
        }
        h1, h2, h3 {
            color: #2c3e50;
        }
        .header {
            border-bottom: 3px solid #0071C5;
            padding-bottom: 16px;
            margin-bottom: 24px;
        }
        .info-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 16px;
            margin: 20px 0;
        }
        .info-card {
            background-color: #f8f9fa;
            padding: 12px;
            border-radius: 4px;
            border-left: 4px solid #0071C5;
        }
        .info-card h3 {
            margin: 0 0 6px 0;
            color: #666;
            font-size: 0.8em;
            text-transform: uppercase;
        }
        .info-card p {
            margin: 0;
            font-size: 1.1em;
            font-weight: 500;
        }
        .field-group {
            margin-bottom: 24px;
            page-break-inside: avoid;
        }
        .field-group h3 {
            background-color: #f0f0f0;
            padding: 8px;
            margin: 0 0 10px 0;
            border-radius: 4px;
        }
        .fields-table {
            width: 100%;
            border-collapse: collapse;
        }
        .fields-table td {
            padding: 6px 10px;
            border-bottom: 1px solid #e0e0e0;
        }
        .fields-table td.label {
            width: 45%;
            color: #555;
        }
        .fields-table tr.unset td.value {
            color: #aaa;
        }
        .notes {
            background-color: #FFFBEA;
            border: 1px solid #F5E3A3;
            border-radius: 4px;
            padding: 12px;
            margin: 20px 0;
            white-space: pre-wrap;
        }
        .footer {
            margin-top: 32px;
            padding-top: 16px;
            border-top: 1px solid #e0e0e0;
            text-align: center;
            color: #666;
            font-size: 0.9em;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.Panel.Name}}</h1>
            <p>{{if .Panel.ID}}Panel #{{.Panel.ID}} | {{end}}Parse ID: {{.Panel.ParseID}} |
               Sources: {{if .Panel.Info.Sources}}{{join .Panel.Info.Sources ", "}}{{else}}none{{end}} |
               {{.SetCount}} of {{.TotalCount}} fields decoded
            </p>
        </div>

        <div class="info-grid">
            {{range .Summary}}
            <div class="info-card">
                <h3>{{.Title}}</h3>
                <p>{{.Value}}</p>
            </div>
            {{end}}
        </div>

        {{if .Panel.Notes}}
        <div class="notes">{{.Panel.Notes}}</div>
        {{end}}

        {{range .Groups}}
        <div class="field-group">
            <h3>{{.Name}}</h3>
            <table class="fields-table">
                <tbody>
                    {{range .Fields}}
                    <tr class="{{rowClass .Set}}" id="{{.Name}}">
                        <td class="label">{{.Label}}</td>
                        <td class="value">{{.Value}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </div>
        {{end}}

        <div class="footer">
            <p>Generated by panelcap on {{formatTime .GeneratedAt}}</p>
        </div>
    </div>
</body>
</html>
`
