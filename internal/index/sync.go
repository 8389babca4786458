package index

import (
	"log/slog"
	"strings"

	"github.com/eldridge/lorevault/internal/record"
	"github.com/eldridge/lorevault/internal/schema"
	"github.com/eldridge/lorevault/internal/store"
	"github.com/eldridge/lorevault/internal/world"
)

// Sync walks every category of the world and brings the index up to date:
//   - new/changed record files are decoded and upserted
//   - records removed from disk are deleted from the index
func Sync(db *DB, w *world.World, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[record.Ref]struct{})
	for _, category := range w.Categories() {
		st := w.Store(category)
		summaries, err := st.List()
		if err != nil {
			logger.Warn("sync: list failed",
				slog.String("category", category),
				slog.String("error", err.Error()))
			continue
		}
		for _, sum := range summaries {
			ref := record.Ref{Category: category, ID: sum.ID}
			disk[ref] = struct{}{}

			if checksums[ref] == sum.Checksum {
				continue
			}
			if err := IndexRecord(db, st, sum); err != nil {
				logger.Warn("sync: index failed",
					slog.String("category", category),
					slog.String("id", sum.ID),
					slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: indexed",
					slog.String("category", category),
					slog.String("id", sum.ID))
			}
		}
	}

	// Remove stale entries.
	for ref := range checksums {
		if _, ok := disk[ref]; !ok {
			if err := db.DeleteRecord(ref.Category, ref.ID); err != nil {
				logger.Warn("sync: delete failed",
					slog.String("category", ref.Category),
					slog.String("id", ref.ID),
					slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale",
					slog.String("category", ref.Category),
					slog.String("id", ref.ID))
			}
		}
	}

	return nil
}

// IndexRecord decodes a record through its store and upserts it into the DB.
func IndexRecord(db *DB, st *store.Store, sum store.Summary) error {
	rec, err := st.Load(sum.ID)
	if err != nil {
		return err
	}
	row := RecordRow{
		Category:   st.Category(),
		ID:         sum.ID,
		Name:       sum.Name,
		Checksum:   sum.Checksum,
		Tags:       sum.Tags,
		ModifiedAt: sum.ModifiedAt,
	}
	return db.UpsertRecord(row, searchText(rec, st.Schema()), outgoingLinks(rec, st.Schema()))
}

// searchText flattens a record's textual content for full-text search:
// text and multiline values in schema order, then orphan section bodies.
func searchText(rec *record.Record, s *schema.Schema) string {
	var parts []string
	for _, f := range s.Fields {
		if f.Type != schema.TypeText && f.Type != schema.TypeMultiline {
			continue
		}
		if v, ok := rec.Values[f.Key]; ok && v.Text != "" {
			parts = append(parts, v.Text)
		}
	}
	for _, o := range rec.Orphans {
		if o.Body != "" {
			parts = append(parts, o.Body)
		}
	}
	return strings.Join(parts, "\n")
}

// outgoingLinks collects every link reference the record holds.
func outgoingLinks(rec *record.Record, s *schema.Schema) []record.Ref {
	var out []record.Ref
	for _, f := range s.Fields {
		if f.Type != schema.TypeLink {
			continue
		}
		if v, ok := rec.Values[f.Key]; ok {
			out = append(out, v.Links...)
		}
	}
	return out
}
