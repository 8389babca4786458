// Package index provides a SQLite-backed search index over record files,
// with optional FTS5 full-text search. The index is derived state: record
// files on disk stay the source of truth and the index is rebuilt from them
// whenever they drift.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	category    TEXT NOT NULL,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	checksum    TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '[]',
	body        TEXT NOT NULL DEFAULT '',
	modified_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (category, id)
);

CREATE TABLE IF NOT EXISTS links (
	src_category    TEXT NOT NULL,
	src_id          TEXT NOT NULL,
	target_category TEXT NOT NULL,
	target_id       TEXT NOT NULL,
	UNIQUE(src_category, src_id, target_category, target_id)
);

CREATE INDEX IF NOT EXISTS idx_links_src ON links(src_category, src_id);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_category, target_id);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
