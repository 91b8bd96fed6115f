//go:build !linux && !darwin

package core

import (
	"io/fs"
	"time"
)

// birthTime falls back to the modification time where creation time is not
// exposed.
func birthTime(_ string, fi fs.FileInfo) time.Time {
	return fi.ModTime()
}
