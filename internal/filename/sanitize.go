// Package filename turns user-supplied strings into names that are safe on any filesystem.
package filename

import (
	"fmt"
	"strings"
	"time"
)

// Sanitize replaces every rune outside [A-Za-z0-9._-] with '_'.
func Sanitize(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		}
		return '_'
	}, raw)
}

// ForReport names the PDF for a user/archetype pair at the given second.
// Two reports for the same pair within one second share a name.
func ForReport(userName, archetype string, at time.Time) string {
	return Sanitize(fmt.Sprintf("%s_%s_%d.pdf", userName, archetype, at.Unix()))
}
