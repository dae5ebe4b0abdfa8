// Package db persists extracted panel records in SQLite.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/mscrnt/panelcap/pkg/panelinfo"
)

// DB wraps the SQL database connection
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens a SQLite database
func Open(path string) (*DB, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		conn: conn,
		path: path,
	}

	if err := db.Migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Migrate creates or updates the database schema
func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS panels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		parse_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		edid_path TEXT,
		vbt_path TEXT,
		dpcd_path TEXT,
		vendor TEXT,
		part_number TEXT,
		edid_version TEXT,
		resolution TEXT,
		info TEXT NOT NULL,
		notes TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_panels_vendor ON panels(vendor);
	CREATE INDEX IF NOT EXISTS idx_panels_created_at ON panels(created_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// CreatePanel stores a freshly extracted record under a new parse ID
func (db *DB) CreatePanel(name string, paths ArtifactPaths, info *panelinfo.Info) (*Panel, error) {
	if info == nil {
		info = &panelinfo.Info{}
	}

	now := time.Now().UTC()
	panel := &Panel{
		ParseID:   uuid.NewString(),
		Name:      name,
		EDIDPath:  paths.EDID,
		VBTPath:   paths.VBT,
		DPCDPath:  paths.DPCD,
		Info:      InfoData{Info: *info},
		CreatedAt: now,
		UpdatedAt: now,
	}
	panel.denormalize()
	if panel.Name == "" {
		panel.Name = defaultName(panel)
	}

	result, err := db.conn.Exec(
		`INSERT INTO panels (parse_id, name, edid_path, vbt_path, dpcd_path,
		 vendor, part_number, edid_version, resolution, info, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		panel.ParseID, panel.Name, panel.EDIDPath, panel.VBTPath, panel.DPCDPath,
		panel.Vendor, panel.PartNumber, panel.EdidVersion, panel.Resolution,
		panel.Info, panel.Notes, panel.CreatedAt, panel.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create panel: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	panel.ID = id
	return panel, nil
}

// UpdatePanel writes back the name, notes and reviewed Info of a panel
func (db *DB) UpdatePanel(panel *Panel) error {
	panel.denormalize()
	panel.UpdatedAt = time.Now().UTC()

	result, err := db.conn.Exec(
		`UPDATE panels SET
		 name = ?, vendor = ?, part_number = ?, edid_version = ?, resolution = ?,
		 info = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		panel.Name, panel.Vendor, panel.PartNumber, panel.EdidVersion, panel.Resolution,
		panel.Info, panel.Notes, panel.UpdatedAt, panel.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update panel: %w", err)
	}
	return requireRow(result, panel.ID)
}

// DeletePanel removes a panel by ID
func (db *DB) DeletePanel(id int64) error {
	result, err := db.conn.Exec(`DELETE FROM panels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete panel: %w", err)
	}
	return requireRow(result, id)
}

const panelColumns = `id, parse_id, name, edid_path, vbt_path, dpcd_path, vendor,
	part_number, edid_version, resolution, info, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPanel(row rowScanner) (*Panel, error) {
	panel := &Panel{}
	var edidPath, vbtPath, dpcdPath, vendor, part, version, resolution, notes sql.NullString
	err := row.Scan(
		&panel.ID, &panel.ParseID, &panel.Name, &edidPath, &vbtPath, &dpcdPath,
		&vendor, &part, &version, &resolution, &panel.Info, &notes,
		&panel.CreatedAt, &panel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	panel.EDIDPath = edidPath.String
	panel.VBTPath = vbtPath.String
	panel.DPCDPath = dpcdPath.String
	panel.Vendor = vendor.String
	panel.PartNumber = part.String
	panel.EdidVersion = version.String
	panel.Resolution = resolution.String
	panel.Notes = notes.String
	return panel, nil
}

// GetPanel retrieves a panel by ID
func (db *DB) GetPanel(id int64) (*Panel, error) {
	panel, err := scanPanel(db.conn.QueryRow(
		`SELECT `+panelColumns+` FROM panels WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrPanelNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get panel: %w", err)
	}
	return panel, nil
}

// GetPanelByParseID retrieves a panel by the UUID assigned at creation
func (db *DB) GetPanelByParseID(parseID string) (*Panel, error) {
	id, err := uuid.Parse(parseID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParseID, parseID)
	}

	panel, err := scanPanel(db.conn.QueryRow(
		`SELECT `+panelColumns+` FROM panels WHERE parse_id = ?`, id.String(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: parse id %s", ErrPanelNotFound, parseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get panel: %w", err)
	}
	return panel, nil
}

// ListPanels retrieves panels based on filters, newest first
func (db *DB) ListPanels(filter PanelFilter) ([]*Panel, error) {
	query := `SELECT ` + panelColumns + ` FROM panels WHERE 1=1`
	args := []interface{}{}

	if filter.Vendor != "" {
		query += " AND vendor = ?"
		args = append(args, filter.Vendor)
	}

	if filter.Name != "" {
		query += " AND name LIKE ?"
		args = append(args, "%"+filter.Name+"%")
	}

	if filter.Resolution != "" {
		query += " AND resolution = ?"
		args = append(args, filter.Resolution)
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list panels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var panels []*Panel
	for rows.Next() {
		panel, err := scanPanel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan panel: %w", err)
		}
		panels = append(panels, panel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list panels: %w", err)
	}

	return panels, nil
}

// denormalize copies the searchable Info values into their own columns
func (p *Panel) denormalize() {
	p.Vendor = panelinfo.Value(p.Info.PanelVendor)
	p.PartNumber = panelinfo.Value(p.Info.PanelPartNumber)
	p.EdidVersion = panelinfo.Value(p.Info.EdidVersion)
	p.Resolution = panelinfo.Value(p.Info.Resolution)
}

func defaultName(p *Panel) string {
	switch {
	case p.Vendor != "" && p.PartNumber != "":
		return p.Vendor + " " + p.PartNumber
	case p.EDIDPath != "":
		return filepath.Base(p.EDIDPath)
	case p.DPCDPath != "":
		return filepath.Base(p.DPCDPath)
	}
	return "panel-" + p.ParseID[:8]
}

func requireRow(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrPanelNotFound, id)
	}
	return nil
}
