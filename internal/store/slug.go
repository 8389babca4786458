package store

import "strings"

// Slugify derives a filesystem-safe record id from a display name:
// lowercase, spaces to underscores, everything outside [a-z0-9_-] stripped.
// A name with no usable characters falls back to "record".
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	slug := strings.Trim(b.String(), "_")
	if slug == "" {
		return "record"
	}
	return slug
}
