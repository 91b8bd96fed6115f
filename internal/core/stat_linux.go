//go:build linux

package core

import (
	"io/fs"
	"time"

	"golang.org/x/sys/unix"
)

// birthTime returns the creation time when the filesystem records one,
// falling back to the inode change time.
func birthTime(path string, fi fs.FileInfo) time.Time {
	var stx unix.Statx_t
	if err := unix.Statx(unix.AT_FDCWD, path, 0, unix.STATX_BTIME|unix.STATX_CTIME, &stx); err != nil {
		return fi.ModTime()
	}
	if stx.Mask&unix.STATX_BTIME != 0 {
		return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
	}
	return time.Unix(stx.Ctime.Sec, int64(stx.Ctime.Nsec))
}
