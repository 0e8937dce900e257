//go:build unix

package stream

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes a blocking, exclusive advisory lock on f via flock(2).
func lockFile(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return ErrSysLock.Wrap(err)
	}
	return nil
}
