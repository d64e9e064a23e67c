package gallery

import (
	"path"
	"strings"
)

// ignorePattern is a parsed exclusion pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against the path below the export root; false = file name only
}

// KeyFilter excludes object keys by glob pattern.
// Patterns without '/' match against the file name only.
// Patterns with '/' match against the key below the export root,
// e.g. "Trash/*" or "*/Hangout_*".
type KeyFilter struct {
	patterns []ignorePattern
}

// NewKeyFilter creates a KeyFilter from raw pattern strings.
// Blank entries and entries starting with '#' are skipped.
func NewKeyFilter(rawPatterns []string) *KeyFilter {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &KeyFilter{patterns: patterns}
}

// Match reports whether relative, a key below the export root, is excluded.
func (f *KeyFilter) Match(relative string) bool {
	if f == nil || len(f.patterns) == 0 {
		return false
	}

	name := path.Base(relative)
	for _, p := range f.patterns {
		subject := name
		if p.matchPath {
			subject = relative
		}
		matched, err := path.Match(p.pattern, subject)
		if err != nil {
			// malformed pattern never matches
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
