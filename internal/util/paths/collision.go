// Package paths provides utilities for keeping local download paths unique.
package paths

import "fmt"

// Namer deterministically disambiguates sanitized names within one
// directory. The first occurrence keeps its name; later duplicates get an
// incrementing " (n)" suffix, so two remote folders that both sanitize to
// "photos" become "photos" and "photos (2)".
//
// A Namer covers a single directory; create one per parent folder.
type Namer struct {
	seen map[string]int
}

// NewNamer returns an empty Namer.
func NewNamer() *Namer {
	return &Namer{seen: make(map[string]int)}
}

// Unique returns a directory-unique version of name.
func (n *Namer) Unique(name string) string {
	count := n.seen[name]
	n.seen[name] = count + 1
	if count == 0 {
		return name
	}
	// The suffixed form could itself collide with a literal "photos (2)"
	// sibling; claim suffixes until a free one is found.
	for {
		count++
		candidate := fmt.Sprintf("%s (%d)", name, count)
		if n.seen[candidate] == 0 {
			n.seen[candidate] = 1
			n.seen[name] = count
			return candidate
		}
	}
}
