//go:build !windows

// Package diskspace reports free space on the volume holding a path.
package diskspace

import (
	"golang.org/x/sys/unix"
)

// Free returns the bytes available to the current user on the volume
// containing path.
func Free(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}
