package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection of one scope file.
type DB struct {
	*sql.DB
	Path string
}

// Init opens the scope file and runs migrations.
func Init(path string) (*DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Enable WAL mode and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{DB: db, Path: path}
	// One writer per scope file
	db.SetMaxOpenConns(1)

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

// OpenExisting opens a scope file without creating it.
// It returns os.ErrNotExist (wrapped) when the file is missing.
func OpenExisting(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("scope file %s: %w", path, err)
	}
	return Init(path)
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS geometry_records (
			loc_id TEXT PRIMARY KEY,
			parent_id TEXT,
			admin_level INTEGER NOT NULL,
			entity_type TEXT NOT NULL,
			name TEXT,
			geometry BLOB,
			centroid_lon REAL,
			centroid_lat REAL,
			min_lon REAL,
			min_lat REAL,
			max_lon REAL,
			max_lat REAL,
			children_count INTEGER DEFAULT 0,
			descendants_count INTEGER DEFAULT 0,
			geometry_invalid BOOLEAN DEFAULT 0,
			source_hash TEXT,
			simplified BOOLEAN DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_geometry_records_parent ON geometry_records(parent_id);`,
		`CREATE TABLE IF NOT EXISTS persistent_state (
			key TEXT PRIMARY KEY,
			value TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("exec error: %w query: %s", err, q)
		}
	}

	// Migration: files written before simplification tracking
	var colCount int
	err := d.QueryRow("SELECT count(*) FROM pragma_table_info('geometry_records') WHERE name='simplified'").Scan(&colCount)
	if err == nil && colCount == 0 {
		if _, err := d.Exec("ALTER TABLE geometry_records ADD COLUMN simplified BOOLEAN DEFAULT 0"); err != nil {
			return fmt.Errorf("failed to add simplified column: %w", err)
		}
	}

	return nil
}
