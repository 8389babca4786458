// Package store manages the records of one entity category within a world
// directory.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/eldridge/lorevault/internal/apperr"
	"github.com/eldridge/lorevault/internal/record"
	"github.com/eldridge/lorevault/internal/schema"
	"github.com/eldridge/lorevault/internal/storage"
)

// Summary is a lightweight representation returned by list operations.
type Summary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Tags       []string  `json:"tags"`
	Checksum   string    `json:"checksum"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Store holds the records of one category. Records live at
// records/<category>/<id>.md with attached images under
// records/<category>/images/<id>/.
type Store struct {
	category string
	provider storage.Provider
	schema   *schema.Schema
}

// New creates a store for category backed by provider, decoding records
// against s.
func New(provider storage.Provider, category string, s *schema.Schema) *Store {
	return &Store{category: category, provider: provider, schema: s}
}

// Category returns the category name this store manages.
func (st *Store) Category() string {
	return st.category
}

// Schema returns the schema records in this store decode against.
func (st *Store) Schema() *schema.Schema {
	return st.schema
}

// Dir returns the store's directory relative to the world root.
func (st *Store) Dir() string {
	return path.Join("records", st.category)
}

// RecordPath returns the file path for id relative to the world root.
func (st *Store) RecordPath(id string) string {
	return path.Join(st.Dir(), id+".md")
}

// ImagesDir returns the image directory for id relative to the world root.
func (st *Store) ImagesDir(id string) string {
	return path.Join(st.Dir(), "images", id)
}

// List enumerates every record in the category, sorted by id. Records whose
// metadata header fails to decode are logged and skipped; a single corrupt
// file never hides the rest of the category.
func (st *Store) List() ([]Summary, error) {
	infos, err := st.provider.List(st.Dir())
	if err != nil {
		return nil, err
	}

	var out []Summary
	for _, info := range infos {
		id := strings.TrimSuffix(path.Base(info.Path), ".md")
		rec, err := st.Load(id)
		if err != nil {
			slog.Warn("store: skipping undecodable record",
				slog.String("category", st.category),
				slog.String("id", id),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, Summary{
			ID:         id,
			Name:       rec.Name(st.schema),
			Tags:       rec.TagList(st.schema),
			Checksum:   info.Checksum,
			ModifiedAt: info.ModifiedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Summarize builds the listing entry for a single record.
func (st *Store) Summarize(id string) (Summary, error) {
	info, err := st.provider.Stat(st.RecordPath(id))
	if err != nil {
		return Summary{}, err
	}
	rec, err := st.Load(id)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		ID:         id,
		Name:       rec.Name(st.schema),
		Tags:       rec.TagList(st.schema),
		Checksum:   info.Checksum,
		ModifiedAt: info.ModifiedAt,
	}, nil
}

// Load reads and decodes the record with the given id.
func (st *Store) Load(id string) (*record.Record, error) {
	data, err := st.provider.Read(st.RecordPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	rec, err := record.Decode(data, st.schema)
	if err != nil {
		return nil, err
	}
	rec.Category = st.category
	rec.ID = id
	return rec, nil
}

// Save encodes and atomically writes an existing record. The record keeps
// its id even when the name field has changed; a rename never moves the
// file.
func (st *Store) Save(rec *record.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("store: save: record has no id")
	}
	rec.Category = st.category
	rec.SchemaVersion = st.schema.Version
	return st.provider.Write(st.RecordPath(rec.ID), record.Encode(rec, st.schema))
}

// Create derives a fresh id from the record's name field and writes it.
// On slug collision a numeric suffix is appended. Returns the assigned id.
func (st *Store) Create(rec *record.Record) (string, error) {
	if rec.ID != "" {
		return "", fmt.Errorf("store: create %s/%s: %w", st.category, rec.ID, apperr.ErrAlreadyExists)
	}
	rec.ID = st.uniqueID(Slugify(rec.Name(st.schema)))
	if err := st.Save(rec); err != nil {
		rec.ID = ""
		return "", err
	}
	return rec.ID, nil
}

// Duplicate deep-copies a record and its image files under a freshly derived
// id. Image files are copied before the record file is written; on any
// failure or ctx cancellation the copy is rolled back so no new record ends
// up referencing missing images.
func (st *Store) Duplicate(ctx context.Context, id string) (*record.Record, error) {
	src, err := st.Load(id)
	if err != nil {
		return nil, err
	}

	dup := src.Clone()
	dup.ID = st.uniqueID(Slugify(src.Name(st.schema)))

	// Image values still point into the source id's directory.
	for key, v := range dup.Values {
		if v.Kind.ImageBearing() && v.Image != "" {
			v.Image = strings.Replace(v.Image, "images/"+id+"/", "images/"+dup.ID+"/", 1)
			dup.Values[key] = v
		}
	}

	if err := st.provider.CopyTree(ctx, st.ImagesDir(id), st.ImagesDir(dup.ID)); err != nil {
		return nil, err
	}
	if err := st.Save(dup); err != nil {
		_ = st.provider.RemoveTree(st.ImagesDir(dup.ID))
		return nil, err
	}
	return dup, nil
}

// Delete removes a record's file and its image directory.
func (st *Store) Delete(id string) error {
	if !st.provider.Exists(st.RecordPath(id)) {
		return apperr.ErrNotFound
	}
	if err := st.provider.Delete(st.RecordPath(id)); err != nil {
		return err
	}
	return st.provider.RemoveTree(st.ImagesDir(id))
}

// Exists reports whether a record with id is present.
func (st *Store) Exists(id string) bool {
	return st.provider.Exists(st.RecordPath(id))
}

// uniqueID returns base if free, otherwise base_2, base_3, ...
func (st *Store) uniqueID(base string) string {
	if !st.Exists(base) {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", base, n)
		if !st.Exists(candidate) {
			return candidate
		}
	}
}
