// Package sanitize makes remote display names safe to use as local
// filesystem paths.
//
// Remote names may contain separators, reserved characters, control
// characters and invisible Unicode. Everything a host filesystem could choke
// on is replaced with an underscore; a name that sanitizes to nothing
// becomes "untitled".
package sanitize

import "strings"

// reserved covers characters illegal on at least one supported filesystem
// (Windows is the strictest). Forward slash is included so a remote name can
// never escape its directory.
const reserved = `/\:*?"<>|`

// Filename returns a filesystem-safe version of a remote display name.
func Filename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case strings.ContainsRune(reserved, r):
			b.WriteRune('_')
		case r < 0x20 || r == 0x7f:
			// control characters
			b.WriteRune('_')
		case isInvisible(r):
			// dropped entirely; an underscore here would bloat names that
			// merely carry a BOM or zero-width joiner
		default:
			b.WriteRune(r)
		}
	}

	out := strings.TrimSpace(b.String())
	// Trailing dots are invalid on Windows and confusing everywhere.
	out = strings.TrimRight(out, ".")
	out = strings.TrimSpace(out)
	if out == "" {
		return "untitled"
	}
	return out
}

// isInvisible reports zero-width and similar invisible code points.
func isInvisible(r rune) bool {
	switch r {
	case '\u200b', // zero-width space
		'\u200c', // zero-width non-joiner
		'\u200d', // zero-width joiner
		'\ufeff', // zero-width no-break space (BOM)
		'\u00ad', // soft hyphen
		'\u2060', // word joiner
		'\u180e': // Mongolian vowel separator
		return true
	}
	return false
}

// Label shortens and sanitizes an arbitrary string (typically a folder URL)
// for use as a directory name, capped at max runes.
func Label(s string, max int) string {
	out := Filename(s)
	runes := []rune(out)
	if len(runes) > max {
		out = string(runes[:max])
		out = strings.TrimRight(strings.TrimSpace(out), ".")
		if out == "" {
			return "untitled"
		}
	}
	return out
}
