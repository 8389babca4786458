//go:build sqlite_fts5

package index

import (
	"testing"
	"time"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM records_fts`).Scan(&count); err != nil {
		t.Fatalf("records_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := RecordRow{
		Category:   "places",
		ID:         "silverhold",
		Name:       "Silverhold",
		Checksum:   "f1",
		Tags:       []string{"fortress"},
		ModifiedAt: time.Now(),
	}
	if err := db.UpsertRecord(row, "An impregnable citadel carved into the mountain.", nil); err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}

	results, err := db.Search("impregnable", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Category != "places" || results[0].ID != "silverhold" {
		t.Errorf("hit = %s/%s", results[0].Category, results[0].ID)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertRecord(RecordRow{Category: "places", ID: "gone", Checksum: "g", Tags: []string{}, ModifiedAt: time.Now()},
		"vanishing content", nil)
	_ = db.DeleteRecord("places", "gone")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Category == "places" && r.ID == "gone" {
			t.Error("deleted record still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertRecord(RecordRow{Category: "places", ID: "evo", Name: "Old", Checksum: "1", Tags: []string{}, ModifiedAt: now},
		"original text", nil)
	_ = db.UpsertRecord(RecordRow{Category: "places", ID: "evo", Name: "New", Checksum: "2", Tags: []string{}, ModifiedAt: now},
		"replacement text", nil)

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Name != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
