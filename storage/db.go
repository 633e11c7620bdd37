package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const fileName = "clipshare.db"

type DB struct {
	conn *sql.DB
}

// Open opens the history database in configDir and initializes the schema
func Open(configDir string) (*DB, error) {
	dbPath := filepath.Join(configDir, fileName)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Sessions record from their own goroutines while the dashboard reads.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=2000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transfers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,

		direction TEXT NOT NULL,
		port TEXT NOT NULL,

		-- Payload size: characters are runes, bytes are UTF-8 payload bytes
		char_count INTEGER NOT NULL,
		byte_count INTEGER NOT NULL,
		preview TEXT NOT NULL,

		success BOOLEAN NOT NULL,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_timestamp ON transfers(timestamp);
	CREATE INDEX IF NOT EXISTS idx_transfers_direction ON transfers(direction);
	`

	_, err := db.conn.Exec(schema)
	return err
}
