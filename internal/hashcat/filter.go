package hashcat

import "strings"

// maxOptions is the hard platform ceiling on selectable options.
const maxOptions = 100

// Filter ranks catalog entries against a partial query: case-insensitive
// prefix matches first, then case-insensitive substring matches that are not
// already prefix matches, both in catalog order. When the combined candidate
// count would exceed the option ceiling, only the prefix matches are
// returned.
func Filter(query string) []HashType {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		if len(Catalog) > maxOptions {
			return append([]HashType(nil), Catalog[:maxOptions]...)
		}
		return append([]HashType(nil), Catalog...)
	}

	prefix := make([]HashType, 0, 16)
	substring := make([]HashType, 0, 16)
	for _, h := range Catalog {
		name := strings.ToLower(h.Name)
		switch {
		case strings.HasPrefix(name, q):
			prefix = append(prefix, h)
		case strings.Contains(name, q):
			substring = append(substring, h)
		}
	}

	if len(prefix)+len(substring) > maxOptions {
		return prefix
	}
	return append(prefix, substring...)
}
