//go:build !windows

package progress

import "os"

// enableANSI is a no-op on non-Windows platforms; Unix terminals handle
// escape sequences natively.
func enableANSI(f *os.File) {}
