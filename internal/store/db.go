// Package store provides SQLite-backed persistence for items and their
// tag associations.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS items (
	id                TEXT PRIMARY KEY,
	source            TEXT NOT NULL,
	external_id       TEXT,
	url               TEXT,
	content           TEXT NOT NULL DEFAULT '',
	author            TEXT NOT NULL DEFAULT '',
	source_created_at DATETIME,
	first_ingested_at DATETIME NOT NULL,
	last_ingested_at  DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_items_source_external
	ON items(source, external_id) WHERE external_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_items_url ON items(url);

CREATE TABLE IF NOT EXISTS item_tags (
	item_id     TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	slug        TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	auto_tagged INTEGER NOT NULL DEFAULT 0,
	confidence  REAL,
	UNIQUE(item_id, slug)
);
CREATE INDEX IF NOT EXISTS idx_item_tags_item ON item_tags(item_id);
`

// DB wraps a sql.DB with item-store operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
