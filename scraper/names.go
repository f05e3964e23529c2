package scraper

import "strings"

// fallbackDocumentName is used when a row's identifier sanitizes to nothing.
const fallbackDocumentName = "document"

// SanitizeDocumentName maps a document identifier to a safe file name:
// every rune outside [A-Za-z0-9._-] becomes an underscore. Empty or
// whitespace-only identifiers sanitize to a fixed placeholder rather than
// an empty name. Sanitizing an already-sanitized name is a no-op.
func SanitizeDocumentName(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return fallbackDocumentName
	}
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
