// Package pathutil resolves user-supplied paths the same way at every
// entry point: tilde expansion, absolutization, and symlink resolution
// of whatever portion of the path already exists.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveAbsolute converts a user-supplied path to an absolute one.
// Symlinks and junctions in the existing portion of the path are
// resolved, then any not-yet-existing components are appended as-is.
// This matters when the destination root is a link (a Downloads
// junction on Windows, a symlinked volume elsewhere) but the target
// subdirectory has not been created yet.
func ResolveAbsolute(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}

	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = home + path[1:]
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved, nil
	}

	// The path does not fully exist: walk up to the deepest existing
	// ancestor, resolve that, and append the remainder unchanged.
	current := absPath
	var remainder []string
	for {
		if _, err := os.Stat(current); err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				resolved = current
			}
			for i := len(remainder) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, remainder[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return absPath, nil
		}
		remainder = append(remainder, filepath.Base(current))
		current = parent
	}
}
