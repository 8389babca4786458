package api

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/eldridge/lorevault/internal/apperr"
	"github.com/eldridge/lorevault/internal/index"
	"github.com/eldridge/lorevault/internal/record"
	"github.com/eldridge/lorevault/internal/schema"
	"github.com/eldridge/lorevault/internal/store"
	"github.com/eldridge/lorevault/internal/world"
)

// Service coordinates the world and the index for the API layer.
type Service struct {
	world *world.World
	db    *index.DB
}

// NewService creates a new API service.
func NewService(w *world.World, db *index.DB) *Service {
	return &Service{world: w, db: db}
}

// RecordDetail is the response payload for a single record.
type RecordDetail struct {
	Category   string         `json:"category"`
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Tags       []string       `json:"tags"`
	Values     map[string]any `json:"values"`
	Content    string         `json:"content"`
	Checksum   string         `json:"checksum"`
	Backlinks  []record.Ref   `json:"backlinks"`
	Meta       map[string]any `json:"meta,omitempty"`
	ModifiedAt time.Time      `json:"modified_at"`
}

// RecordListItem is a lightweight item in a list response.
type RecordListItem struct {
	Category   string    `json:"category"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Tags       []string  `json:"tags"`
	Checksum   string    `json:"checksum"`
	ModifiedAt time.Time `json:"modified_at"`
}

// CategoryInfo describes one record category and its template.
type CategoryInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Fields      int    `json:"fields"`
	Records     int    `json:"records"`
}

// Categories lists the categories of the open world.
func (s *Service) Categories() ([]CategoryInfo, error) {
	cats := s.world.Categories()
	out := make([]CategoryInfo, 0, len(cats))
	for _, c := range cats {
		sc := s.world.Schema(c)
		st := s.world.Store(c)
		n := 0
		if sums, err := st.List(); err == nil {
			n = len(sums)
		}
		out = append(out, CategoryInfo{
			Name:        c,
			Description: sc.Description,
			Fields:      len(sc.Fields),
			Records:     n,
		})
	}
	return out, nil
}

// GetRecord reads a record from storage and enriches it with backlinks.
func (s *Service) GetRecord(category, id string) (*RecordDetail, error) {
	st := s.world.Store(category)
	rec, err := st.Load(id)
	if err != nil {
		return nil, err
	}
	sum, err := st.Summarize(id)
	if err != nil {
		return nil, err
	}
	sc := st.Schema()
	bl, _ := s.db.Backlinks(record.Ref{Category: category, ID: id})
	if bl == nil {
		bl = []record.Ref{}
	}
	values := make(map[string]any, len(rec.Values))
	for k, v := range rec.Values {
		values[k] = v.Interface()
	}
	return &RecordDetail{
		Category:   category,
		ID:         id,
		Name:       rec.Name(sc),
		Tags:       rec.TagList(sc),
		Values:     values,
		Content:    string(record.Encode(rec, sc)),
		Checksum:   sum.Checksum,
		Backlinks:  bl,
		Meta:       rec.Meta,
		ModifiedAt: sum.ModifiedAt,
	}, nil
}

// CreateRecord builds a record from field values and persists it under a
// freshly allocated id derived from the name.
func (s *Service) CreateRecord(category, name string, values map[string]any) (*RecordDetail, error) {
	st := s.world.Store(category)
	sc := st.Schema()
	rec := record.New(category, sc)
	if err := applyValues(rec, sc, values); err != nil {
		return nil, err
	}
	if nf, ok := sc.NameField(); ok && name != "" {
		rec.Values[nf.Key] = record.NewText(nf.Type, name)
	}
	if _, err := st.Create(rec); err != nil {
		return nil, err
	}
	if err := s.reindex(st, rec.ID); err != nil {
		return nil, err
	}
	return s.GetRecord(category, rec.ID)
}

// UpdateRecord writes updated values with optimistic concurrency: when
// ifMatch is non-empty it must equal the current checksum.
func (s *Service) UpdateRecord(category, id string, values map[string]any, ifMatch string) (*RecordDetail, error) {
	st := s.world.Store(category)
	rec, err := st.Load(id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" {
		sum, err := st.Summarize(id)
		if err != nil {
			return nil, err
		}
		if sum.Checksum != ifMatch {
			return nil, apperr.ErrConflict
		}
	}
	if err := applyValues(rec, st.Schema(), values); err != nil {
		return nil, err
	}
	if err := st.Save(rec); err != nil {
		return nil, err
	}
	if err := s.reindex(st, id); err != nil {
		return nil, err
	}
	return s.GetRecord(category, id)
}

// RecordExists reports whether a record file exists for category/id.
func (s *Service) RecordExists(category, id string) bool {
	return s.world.Store(category).Exists(id)
}

// DeleteRecord removes a record from storage and the index.
func (s *Service) DeleteRecord(category, id string) error {
	st := s.world.Store(category)
	if err := st.Delete(id); err != nil {
		return err
	}
	return s.db.DeleteRecord(category, id)
}

// DuplicateRecord clones a record, including its image directory, under a
// new id.
func (s *Service) DuplicateRecord(ctx context.Context, category, id string) (*RecordDetail, error) {
	st := s.world.Store(category)
	dup, err := st.Duplicate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.reindex(st, dup.ID); err != nil {
		return nil, err
	}
	return s.GetRecord(category, dup.ID)
}

// ListRecords returns paginated records with optional tag filter.
func (s *Service) ListRecords(category string, limit, offset int, tag, sortBy string) ([]RecordListItem, int, error) {
	rows, total, err := s.db.ListRecords(category, limit, offset, tag, sortBy)
	if err != nil {
		return nil, 0, err
	}
	items := make([]RecordListItem, len(rows))
	for i, r := range rows {
		tags := r.Tags
		if tags == nil {
			tags = []string{}
		}
		items[i] = RecordListItem{
			Category:   r.Category,
			ID:         r.ID,
			Name:       r.Name,
			Tags:       tags,
			Checksum:   r.Checksum,
			ModifiedAt: r.ModifiedAt,
		}
	}
	return items, total, nil
}

// Search delegates to the index.
func (s *Service) Search(query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Backlinks lists records that link to the given target.
func (s *Service) Backlinks(category, id string) ([]record.Ref, error) {
	bl, err := s.db.Backlinks(record.Ref{Category: category, ID: id})
	if err != nil {
		return nil, err
	}
	if bl == nil {
		bl = []record.Ref{}
	}
	return bl, nil
}

// ResolveLink reports whether a link target exists and its display name.
func (s *Service) ResolveLink(category, id string) world.Resolution {
	return s.world.Resolver().Resolve(record.Ref{Category: category, ID: id})
}

// Template returns the template markdown for a category and whether it is
// backed by a real template (file or built-in) rather than a generic fallback.
func (s *Service) Template(category string) (string, bool) {
	return s.world.TemplateMarkdown(category)
}

// TemplateFields returns the parsed field declarations of a category's
// schema in template order.
func (s *Service) TemplateFields(category string) []FieldInfo {
	sc := s.world.Schema(category)
	out := make([]FieldInfo, len(sc.Fields))
	for i, f := range sc.Fields {
		out[i] = FieldInfo{
			Key:      f.Key,
			Label:    f.Label,
			Type:     string(f.Type),
			Required: f.Required,
			Width:    f.Width,
			Height:   f.Height,
			Targets:  f.Targets,
		}
	}
	return out
}

func (s *Service) reindex(st *store.Store, id string) error {
	sum, err := st.Summarize(id)
	if err != nil {
		return err
	}
	return index.IndexRecord(s.db, st, sum)
}

// applyValues converts JSON-shaped field values into typed record values
// according to the schema. Keys that are not schema fields are rejected.
func applyValues(rec *record.Record, sc *schema.Schema, values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f, ok := sc.FieldByKey(k)
		if !ok {
			return fmt.Errorf("unknown field %q", k)
		}
		v, err := coerceValue(f, values[k])
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		rec.Values[k] = v
	}
	return nil
}

func coerceValue(f schema.Field, raw any) (record.Value, error) {
	switch f.Type {
	case schema.TypeTags:
		items, err := stringSlice(raw)
		if err != nil {
			return record.Value{}, err
		}
		return record.NewTags(items), nil
	case schema.TypeNumber:
		switch n := raw.(type) {
		case nil:
			return record.AbsentNumber(), nil
		case float64:
			return record.NewNumber(n), nil
		case int:
			return record.NewNumber(float64(n)), nil
		default:
			return record.Value{}, fmt.Errorf("expected number, got %T", raw)
		}
	case schema.TypeImage, schema.TypeMainImage:
		s, ok := raw.(string)
		if !ok {
			return record.Value{}, fmt.Errorf("expected string, got %T", raw)
		}
		return record.NewImage(f.Type, s), nil
	case schema.TypeLink:
		items, err := stringSlice(raw)
		if err != nil {
			return record.Value{}, err
		}
		refs := make([]record.Ref, 0, len(items))
		for _, it := range items {
			ref, ok := record.ParseRef(it)
			if !ok {
				if len(f.Targets) != 1 {
					return record.Value{}, fmt.Errorf("link %q needs a category/id form", it)
				}
				ref = record.Ref{Category: f.Targets[0], ID: it}
			}
			refs = append(refs, ref)
		}
		return record.NewLinks(refs), nil
	default:
		s, ok := raw.(string)
		if !ok {
			return record.Value{}, fmt.Errorf("expected string, got %T", raw)
		}
		return record.NewText(f.Type, s), nil
	}
}

func stringSlice(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, it := range v {
			s, ok := it.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", it)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return []string{v}, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", raw)
	}
}
