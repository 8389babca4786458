// Package record reads and writes typed records against a template schema,
// preserving document structure and hand-edited content across edit cycles.
package record

import (
	"strings"

	"github.com/eldridge/lorevault/internal/schema"
)

// Ref is a weak reference to a record in another category. It is a lookup
// key, never an ownership edge; the referenced record may not exist.
type Ref struct {
	Category string `json:"category"`
	ID       string `json:"id"`
}

// String renders the reference in wiki-link target form: category/id.
func (r Ref) String() string {
	return r.Category + "/" + r.ID
}

// ParseRef parses a "category/id" target. The id part may itself contain
// slashes; only the first separates the category.
func ParseRef(target string) (Ref, bool) {
	cat, id, ok := strings.Cut(target, "/")
	if !ok || cat == "" || id == "" {
		return Ref{}, false
	}
	return Ref{Category: cat, ID: id}, true
}

// Value holds one field's data. Kind selects which member is meaningful.
type Value struct {
	Kind   schema.FieldType
	Text   string
	Tags   []string
	Number *float64 // nil when absent
	Image  string   // relative path, empty when absent
	Links  []Ref
}

// IsZero reports whether the value is empty for its kind.
func (v Value) IsZero() bool {
	switch v.Kind {
	case schema.TypeTags:
		return len(v.Tags) == 0
	case schema.TypeNumber:
		return v.Number == nil
	case schema.TypeImage, schema.TypeMainImage:
		return v.Image == ""
	case schema.TypeLink:
		return len(v.Links) == 0
	default:
		return v.Text == ""
	}
}

// NewText returns a text or multiline value.
func NewText(kind schema.FieldType, text string) Value {
	return Value{Kind: kind, Text: text}
}

// NewTags returns a tags value with empty entries dropped and duplicates
// collapsed case-insensitively, first casing and insertion order preserved.
func NewTags(tags []string) Value {
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return Value{Kind: schema.TypeTags, Tags: out}
}

// NewNumber returns a numeric value.
func NewNumber(n float64) Value {
	return Value{Kind: schema.TypeNumber, Number: &n}
}

// AbsentNumber returns an absent numeric value.
func AbsentNumber() Value {
	return Value{Kind: schema.TypeNumber}
}

// NewImage returns an image path value for kind image or mimage.
func NewImage(kind schema.FieldType, path string) Value {
	return Value{Kind: kind, Image: path}
}

// NewLinks returns a link value with exact duplicates removed, order kept.
func NewLinks(refs []Ref) Value {
	seen := make(map[Ref]struct{}, len(refs))
	var out []Ref
	for _, r := range refs {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return Value{Kind: schema.TypeLink, Links: out}
}

// Interface returns the value's natural JSON shape: a string for text and
// image kinds, a string slice for tags, a number or nil, or a Ref slice.
func (v Value) Interface() any {
	switch v.Kind {
	case schema.TypeTags:
		if v.Tags == nil {
			return []string{}
		}
		return v.Tags
	case schema.TypeNumber:
		if v.Number == nil {
			return nil
		}
		return *v.Number
	case schema.TypeImage, schema.TypeMainImage:
		return v.Image
	case schema.TypeLink:
		if v.Links == nil {
			return []Ref{}
		}
		return v.Links
	default:
		return v.Text
	}
}

// Orphan is body content under a heading the current schema no longer
// declares. Orphans are preserved verbatim on re-save rather than dropped.
type Orphan struct {
	Heading string
	Body    string
}

// Record is one saved entity conforming to a template.
type Record struct {
	Category string
	// ID is the filesystem-safe identifier, derived from the name field at
	// creation and never re-derived on rename.
	ID string
	// Meta holds the frontmatter header verbatim.
	Meta map[string]any
	// Values maps field keys to their current values. Keys absent from the
	// current schema live in Orphans instead.
	Values map[string]Value
	// Orphans keeps sections for removed schema fields, in document order.
	Orphans []Orphan
	// SchemaVersion is the template version the record was last saved with.
	SchemaVersion string
}

// New creates an empty record for category with a default value per schema
// field.
func New(category string, s *schema.Schema) *Record {
	values := make(map[string]Value, len(s.Fields))
	for _, f := range s.Fields {
		values[f.Key] = Value{Kind: f.Type}
	}
	return &Record{
		Category:      category,
		Meta:          map[string]any{},
		Values:        values,
		SchemaVersion: s.Version,
	}
}

// Name returns the record's display name per the schema's name field, or
// the record id when the schema declares no usable text field.
func (r *Record) Name(s *schema.Schema) string {
	if f, ok := s.NameField(); ok {
		if v, ok := r.Values[f.Key]; ok && v.Text != "" {
			return v.Text
		}
	}
	return r.ID
}

// TagList returns the value of the schema's first tags field, if any.
func (r *Record) TagList(s *schema.Schema) []string {
	for _, f := range s.Fields {
		if f.Type == schema.TypeTags {
			if v, ok := r.Values[f.Key]; ok {
				return v.Tags
			}
		}
	}
	return nil
}

// Clone deep-copies the record. The copy shares no mutable state with the
// original.
func (r *Record) Clone() *Record {
	out := &Record{
		Category:      r.Category,
		ID:            r.ID,
		Meta:          make(map[string]any, len(r.Meta)),
		Values:        make(map[string]Value, len(r.Values)),
		Orphans:       append([]Orphan(nil), r.Orphans...),
		SchemaVersion: r.SchemaVersion,
	}
	for k, v := range r.Meta {
		out.Meta[k] = v
	}
	for k, v := range r.Values {
		cp := v
		cp.Tags = append([]string(nil), v.Tags...)
		cp.Links = append([]Ref(nil), v.Links...)
		if v.Number != nil {
			n := *v.Number
			cp.Number = &n
		}
		out.Values[k] = cp
	}
	return out
}
