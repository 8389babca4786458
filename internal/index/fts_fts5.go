//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			category UNINDEXED,
			id UNINDEXED,
			name,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, category, id, name, body string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM records_fts WHERE category = ? AND id = ?`, category, id)
	_, err := tx.Exec(`INSERT INTO records_fts (category, id, name, body, tags) VALUES (?, ?, ?, ?, ?)`,
		category, id, name, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, category, id string) {
	_, _ = tx.Exec(`DELETE FROM records_fts WHERE category = ? AND id = ?`, category, id)
}

// Search performs an FTS5 full-text search and returns matching records with
// snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT category,
		       id,
		       name,
		       snippet(records_fts, 3, '<b>', '</b>', '...', 64)
		FROM records_fts
		WHERE records_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Category, &r.ID, &r.Name, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
