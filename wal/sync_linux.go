//go:build linux

package wal

import (
	"os"

	"golang.org/x/sys/unix"
)

// fdatasync flushes file data (and only as much metadata as is needed to
// retrieve it) to stable storage. It is cheaper than a full fsync because
// it skips syncing metadata such as atime/mtime that recovery does not
// depend on.
func fdatasync(f *os.File) error {
	for {
		err := unix.Fdatasync(int(f.Fd()))
		if err != unix.EINTR {
			return err
		}
	}
}
