// Package database is the SQLite persistence layer behind the catalog,
// import, conversion and sorting pipelines.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Queryer is the common query surface of *sql.DB and *sql.Tx. CRUD
// functions take a Queryer so command handlers can run every write of
// one user command inside a single transaction.
type Queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// DB wraps the SQLite connection.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// process-wide connection settings.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection: commands are single-threaded and WAL mode
	// keeps readers out of the way.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA wal_checkpoint(TRUNCATE)",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS systems (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		custom_name TEXT,
		description TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		url TEXT,
		arcade INTEGER NOT NULL DEFAULT 0,
		merging TEXT NOT NULL DEFAULT 'split',
		completed_games INTEGER NOT NULL DEFAULT 0,
		total_games INTEGER NOT NULL DEFAULT 0,
		custom_extension TEXT
	);
	CREATE TABLE IF NOT EXISTS games (
		id INTEGER PRIMARY KEY,
		system_id INTEGER NOT NULL REFERENCES systems(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		comment TEXT,
		external_id TEXT,
		device INTEGER NOT NULL DEFAULT 0,
		bios INTEGER NOT NULL DEFAULT 0,
		jbfolder INTEGER NOT NULL DEFAULT 0,
		regions TEXT NOT NULL DEFAULT '',
		sorting INTEGER NOT NULL DEFAULT 0,
		complete INTEGER NOT NULL DEFAULT 0,
		parent_id INTEGER REFERENCES games(id) ON DELETE SET NULL,
		bios_id INTEGER REFERENCES games(id) ON DELETE SET NULL,
		playlist_id INTEGER REFERENCES romfiles(id) ON DELETE SET NULL,
		UNIQUE (system_id, name)
	);
	CREATE TABLE IF NOT EXISTS romfiles (
		id INTEGER PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		size INTEGER NOT NULL DEFAULT 0,
		romfile_type INTEGER NOT NULL DEFAULT 0,
		parent_id INTEGER REFERENCES romfiles(id) ON DELETE SET NULL
	);
	CREATE TABLE IF NOT EXISTS roms (
		id INTEGER PRIMARY KEY,
		game_id INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		bios INTEGER NOT NULL DEFAULT 0,
		disk INTEGER NOT NULL DEFAULT 0,
		size INTEGER NOT NULL DEFAULT 0,
		crc TEXT,
		md5 TEXT,
		sha1 TEXT,
		status TEXT,
		romfile_id INTEGER REFERENCES romfiles(id) ON DELETE SET NULL,
		parent_id INTEGER REFERENCES roms(id) ON DELETE SET NULL,
		UNIQUE (game_id, name)
	);
	CREATE TABLE IF NOT EXISTS headers (
		id INTEGER PRIMARY KEY,
		system_id INTEGER NOT NULL UNIQUE REFERENCES systems(id) ON DELETE CASCADE,
		name TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		start_byte INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS header_rules (
		id INTEGER PRIMARY KEY,
		header_id INTEGER NOT NULL REFERENCES headers(id) ON DELETE CASCADE,
		start_offset INTEGER NOT NULL DEFAULT 0,
		hex_value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS patches (
		id INTEGER PRIMARY KEY,
		rom_id INTEGER NOT NULL REFERENCES roms(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		"index" INTEGER NOT NULL DEFAULT 0,
		UNIQUE (rom_id, "index")
	);
	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY,
		key TEXT NOT NULL UNIQUE,
		value TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_games_system_id ON games(system_id);
	CREATE INDEX IF NOT EXISTS idx_roms_game_id ON roms(game_id);
	CREATE INDEX IF NOT EXISTS idx_roms_size_crc ON roms(size, crc);
	CREATE INDEX IF NOT EXISTS idx_roms_size_md5 ON roms(size, md5);
	CREATE INDEX IF NOT EXISTS idx_roms_size_sha1 ON roms(size, sha1);
	CREATE INDEX IF NOT EXISTS idx_roms_romfile_id ON roms(romfile_id);
	CREATE INDEX IF NOT EXISTS idx_romfiles_parent_id ON romfiles(parent_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// WithTransaction runs fn inside a transaction, committing on success
// and rolling back on error or panic.
func (db *DB) WithTransaction(fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
