package index

import (
	"os"
	"testing"
	"time"

	"github.com/eldridge/lorevault/internal/record"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "lorevault-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM records`).Scan(&count); err != nil {
		t.Fatalf("records table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM links`).Scan(&count); err != nil {
		t.Fatalf("links table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	row := RecordRow{
		Category:   "characters",
		ID:         "elira",
		Name:       "Elira Dawnsong",
		Checksum:   "abc123",
		Tags:       []string{"hero", "mage"},
		ModifiedAt: time.Now(),
	}
	links := []record.Ref{{Category: "places", ID: "silverhold"}}
	if err := db.UpsertRecord(row, "A wandering mage from Silverhold.", links); err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}
	cs, err := db.GetChecksum("characters", "elira")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestBacklinks(t *testing.T) {
	db := testDB(t)
	target := record.Ref{Category: "places", ID: "silverhold"}
	_ = db.UpsertRecord(RecordRow{Category: "characters", ID: "elira", Checksum: "1", Tags: []string{}, ModifiedAt: time.Now()},
		"body", []record.Ref{target})
	_ = db.UpsertRecord(RecordRow{Category: "characters", ID: "bren", Checksum: "2", Tags: []string{}, ModifiedAt: time.Now()},
		"body", []record.Ref{target})

	bl, err := db.Backlinks(target)
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 2 {
		t.Fatalf("expected 2 backlinks, got %d", len(bl))
	}
}

func TestDeleteRecord(t *testing.T) {
	db := testDB(t)
	target := record.Ref{Category: "places", ID: "silverhold"}
	_ = db.UpsertRecord(RecordRow{Category: "characters", ID: "gone", Checksum: "x", Tags: []string{}, ModifiedAt: time.Now()},
		"body", []record.Ref{target})

	if err := db.DeleteRecord("characters", "gone"); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	cs, _ := db.GetChecksum("characters", "gone")
	if cs != "" {
		t.Errorf("deleted record still has checksum %q", cs)
	}
	bl, _ := db.Backlinks(target)
	if len(bl) != 0 {
		t.Errorf("expected 0 backlinks after delete, got %d", len(bl))
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	oldTarget := record.Ref{Category: "places", ID: "old_keep"}
	newTarget := record.Ref{Category: "places", ID: "new_keep"}
	_ = db.UpsertRecord(RecordRow{Category: "characters", ID: "up", Name: "Old", Checksum: "1", Tags: []string{}, ModifiedAt: now},
		"old body", []record.Ref{oldTarget})
	_ = db.UpsertRecord(RecordRow{Category: "characters", ID: "up", Name: "New", Checksum: "2", Tags: []string{"new"}, ModifiedAt: now},
		"new body", []record.Ref{newTarget})

	cs, _ := db.GetChecksum("characters", "up")
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	bl, _ := db.Backlinks(oldTarget)
	if len(bl) != 0 {
		t.Error("old link should be removed on upsert")
	}
	bl, _ = db.Backlinks(newTarget)
	if len(bl) != 1 {
		t.Error("new link should exist")
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("characters", "nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestAllChecksums(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertRecord(RecordRow{Category: "characters", ID: "a", Checksum: "c1", Tags: []string{}, ModifiedAt: now}, "", nil)
	_ = db.UpsertRecord(RecordRow{Category: "places", ID: "b", Checksum: "c2", Tags: []string{}, ModifiedAt: now}, "", nil)

	all, err := db.AllChecksums()
	if err != nil {
		t.Fatalf("AllChecksums: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
	if all[record.Ref{Category: "characters", ID: "a"}] != "c1" {
		t.Errorf("characters/a checksum = %q", all[record.Ref{Category: "characters", ID: "a"}])
	}
	if all[record.Ref{Category: "places", ID: "b"}] != "c2" {
		t.Errorf("places/b checksum = %q", all[record.Ref{Category: "places", ID: "b"}])
	}
}

func TestListRecords(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_ = db.UpsertRecord(RecordRow{Category: "characters", ID: "bren", Name: "Bren Coldiron", Checksum: "1", Tags: []string{"Hero"}, ModifiedAt: base}, "", nil)
	_ = db.UpsertRecord(RecordRow{Category: "characters", ID: "elira", Name: "Elira Dawnsong", Checksum: "2", Tags: []string{"hero", "mage"}, ModifiedAt: base.Add(time.Hour)}, "", nil)
	_ = db.UpsertRecord(RecordRow{Category: "characters", ID: "mara", Name: "Mara Veil", Checksum: "3", Tags: []string{"villain"}, ModifiedAt: base.Add(2 * time.Hour)}, "", nil)
	_ = db.UpsertRecord(RecordRow{Category: "places", ID: "silverhold", Name: "Silverhold", Checksum: "4", Tags: []string{}, ModifiedAt: base}, "", nil)

	rows, total, err := db.ListRecords("characters", 100, 0, "", "")
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if total != 3 || len(rows) != 3 {
		t.Fatalf("total = %d, len = %d, want 3/3", total, len(rows))
	}
	// Default sort is name ascending.
	if rows[0].ID != "bren" || rows[1].ID != "elira" || rows[2].ID != "mara" {
		t.Errorf("name sort order = %s, %s, %s", rows[0].ID, rows[1].ID, rows[2].ID)
	}
	if len(rows[1].Tags) != 2 {
		t.Errorf("elira tags = %v, want 2 entries", rows[1].Tags)
	}

	rows, _, err = db.ListRecords("characters", 100, 0, "", "modified")
	if err != nil {
		t.Fatalf("ListRecords modified: %v", err)
	}
	if rows[0].ID != "mara" {
		t.Errorf("modified sort first = %s, want mara", rows[0].ID)
	}

	// Tag filter is case-insensitive.
	rows, total, err = db.ListRecords("characters", 100, 0, "hero", "")
	if err != nil {
		t.Fatalf("ListRecords tag: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("tag filter total = %d, len = %d, want 2/2", total, len(rows))
	}

	// Pagination keeps the unclamped total.
	rows, total, err = db.ListRecords("characters", 1, 1, "", "")
	if err != nil {
		t.Fatalf("ListRecords page: %v", err)
	}
	if total != 3 || len(rows) != 1 || rows[0].ID != "elira" {
		t.Errorf("page = %+v total = %d, want elira and total 3", rows, total)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertRecord(RecordRow{Category: "characters", ID: "elira", Name: "Elira Dawnsong", Checksum: "1", Tags: []string{}, ModifiedAt: time.Now()},
		"sunblade appears here", nil)

	results, err := db.Search("sunblade", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Category != "characters" || results[0].ID != "elira" {
		t.Errorf("search results = %+v, want 1 hit for characters/elira", results)
	}
}
