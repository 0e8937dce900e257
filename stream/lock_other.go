//go:build !unix

package stream

import "os"

// lockFile is a documented no-op off Unix: advisory flock(2) locking has no
// portable equivalent here, so this narrowly scopes to "don't fail, don't
// pretend to lock."
func lockFile(f *os.File) error {
	return nil
}
