//go:build !linux

package wal

import "os"

// fdatasync falls back to a full file sync on platforms without a cheaper
// data-only primitive exposed via golang.org/x/sys.
func fdatasync(f *os.File) error {
	return f.Sync()
}
