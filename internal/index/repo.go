package index

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/eldridge/lorevault/internal/record"
)

// RecordRow represents a row in the records table.
type RecordRow struct {
	Category   string
	ID         string
	Name       string
	Checksum   string
	Tags       []string
	ModifiedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Category string
	ID       string
	Name     string
	Snippet  string
}

// UpsertRecord inserts or replaces a record row, its FTS entry, and its
// outgoing links within a transaction.
func (db *DB) UpsertRecord(row RecordRow, body string, links []record.Ref) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(row.Tags)

	// Upsert records table (includes body for fallback search).
	_, err = tx.Exec(`
		INSERT INTO records (category, id, name, checksum, tags, body, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, id) DO UPDATE SET
			name        = excluded.name,
			checksum    = excluded.checksum,
			tags        = excluded.tags,
			body        = excluded.body,
			modified_at = excluded.modified_at
	`, row.Category, row.ID, row.Name, row.Checksum, string(tagsJSON), body, row.ModifiedAt)
	if err != nil {
		return fmt.Errorf("index: upsert record: %w", err)
	}

	// FTS upsert (no-op when the FTS5 tag is absent).
	if err := ftsUpsert(tx, row.Category, row.ID, row.Name, body, row.Tags); err != nil {
		return err
	}

	// Replace links: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM links WHERE src_category = ? AND src_id = ?`, row.Category, row.ID)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO links (src_category, src_id, target_category, target_id)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(row.Category, row.ID, target.Category, target.ID); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteRecord removes a record row, its FTS entry, and its outgoing links.
func (db *DB) DeleteRecord(category, id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, category, id)
	_, _ = tx.Exec(`DELETE FROM links WHERE src_category = ? AND src_id = ?`, category, id)
	_, _ = tx.Exec(`DELETE FROM records WHERE category = ? AND id = ?`, category, id)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a record, or empty string if
// not indexed.
func (db *DB) GetChecksum(category, id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM records WHERE category = ? AND id = ?`, category, id).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns every indexed record's checksum keyed by reference.
func (db *DB) AllChecksums() (map[record.Ref]string, error) {
	rows, err := db.conn.Query(`SELECT category, id, checksum FROM records`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[record.Ref]string)
	for rows.Next() {
		var ref record.Ref
		var cs string
		if err := rows.Scan(&ref.Category, &ref.ID, &cs); err != nil {
			return nil, err
		}
		out[ref] = cs
	}
	return out, rows.Err()
}

// ListRecords returns paginated rows for one category with an optional tag
// filter. Sort accepts "name" (default, case-insensitive ascending) or
// "modified" (most recent first).
func (db *DB) ListRecords(category string, limit, offset int, tag, sort string) ([]RecordRow, int, error) {
	if limit <= 0 {
		limit = 100
	}

	where := `category = ?`
	args := []any{category}
	if tag != "" {
		where += ` AND EXISTS (SELECT 1 FROM json_each(records.tags) WHERE json_each.value = ? COLLATE NOCASE)`
		args = append(args, tag)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM records WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count records: %w", err)
	}

	order := `name COLLATE NOCASE ASC`
	if sort == "modified" {
		order = `modified_at DESC`
	}

	query := `SELECT category, id, name, checksum, tags, modified_at FROM records WHERE ` +
		where + ` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list records: %w", err)
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		var r RecordRow
		var tagsJSON string
		if err := rows.Scan(&r.Category, &r.ID, &r.Name, &r.Checksum, &tagsJSON, &r.ModifiedAt); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &r.Tags)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Backlinks returns every record that links to the given target.
func (db *DB) Backlinks(target record.Ref) ([]record.Ref, error) {
	rows, err := db.conn.Query(`
		SELECT src_category, src_id FROM links
		WHERE target_category = ? AND target_id = ?`, target.Category, target.ID)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []record.Ref
	for rows.Next() {
		var ref record.Ref
		if err := rows.Scan(&ref.Category, &ref.ID); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}
