// Package schema parses template documents into field schemas and provides
// read-only queries over them. A Schema is immutable once parsed; template
// edits always produce a new Schema via re-parsing.
package schema

import "strings"

// FieldType identifies the value shape of a template field.
type FieldType string

// Recognized field types.
const (
	TypeText      FieldType = "text"
	TypeMultiline FieldType = "multiline"
	TypeTags      FieldType = "tags"
	TypeNumber    FieldType = "number"
	TypeImage     FieldType = "image"
	TypeMainImage FieldType = "mimage"
	TypeLink      FieldType = "link"
)

// Default image dimensions used when a template gives no w=/h= modifiers.
const (
	DefaultImageWidth      = 150
	DefaultImageHeight     = 150
	DefaultMainImageWidth  = 300
	DefaultMainImageHeight = 300
)

// Valid reports whether t is a recognized field type.
func (t FieldType) Valid() bool {
	switch t {
	case TypeText, TypeMultiline, TypeTags, TypeNumber, TypeImage, TypeMainImage, TypeLink:
		return true
	}
	return false
}

// ImageBearing reports whether t stores an image path.
func (t FieldType) ImageBearing() bool {
	return t == TypeImage || t == TypeMainImage
}

// Field is one declared slot in a template.
type Field struct {
	Key      string
	Label    string
	Type     FieldType
	Required bool
	Width    int
	Height   int
	// Targets lists the categories a link field may point into.
	Targets []string
	// Extra holds unrecognized modifiers verbatim, so templates written
	// against newer versions survive a round trip.
	Extra map[string]string
	// Order is the field's position in the template body.
	Order int
}

// ImageWidth returns the declared width or the default for the field type.
func (f Field) ImageWidth() int {
	if f.Width > 0 {
		return f.Width
	}
	if f.Type == TypeMainImage {
		return DefaultMainImageWidth
	}
	return DefaultImageWidth
}

// ImageHeight returns the declared height or the default for the field type.
func (f Field) ImageHeight() int {
	if f.Height > 0 {
		return f.Height
	}
	if f.Type == TypeMainImage {
		return DefaultMainImageHeight
	}
	return DefaultImageHeight
}

// targetsCategory matches link targets case-insensitively.
func (f Field) targetsCategory(category string) bool {
	for _, t := range f.Targets {
		if strings.EqualFold(t, category) {
			return true
		}
	}
	return false
}

// Schema is a parsed template: ordered field declarations plus metadata.
type Schema struct {
	Name        string
	Author      string
	Version     string
	Description string
	Fields      []Field
	// PortraitMarker is the index of the field declared immediately after
	// the legacy ![portrait] marker line, len(Fields) if the marker is the
	// last line, or -1 when the template has no marker.
	PortraitMarker int
}

// FieldByKey returns the declaration for key, if present.
func (s *Schema) FieldByKey(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// MainImageField returns the schema's mimage field, if declared.
func (s *Schema) MainImageField() (Field, bool) {
	for _, f := range s.Fields {
		if f.Type == TypeMainImage {
			return f, true
		}
	}
	return Field{}, false
}

// LinkFieldsTargeting returns every link field that may point into category.
func (s *Schema) LinkFieldsTargeting(category string) []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Type == TypeLink && f.targetsCategory(category) {
			out = append(out, f)
		}
	}
	return out
}

// NameField returns the field used as a record's display name: the first
// required text field, else the first text field. Templates are not required
// to declare one.
func (s *Schema) NameField() (Field, bool) {
	for _, f := range s.Fields {
		if f.Type == TypeText && f.Required {
			return f, true
		}
	}
	for _, f := range s.Fields {
		if f.Type == TypeText {
			return f, true
		}
	}
	return Field{}, false
}

// HasImageFields reports whether any field stores an image path.
func (s *Schema) HasImageFields() bool {
	for _, f := range s.Fields {
		if f.Type.ImageBearing() {
			return true
		}
	}
	return false
}
