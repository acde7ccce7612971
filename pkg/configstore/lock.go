package configstore

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// openLocked opens path and takes a flock(2) lock of kind how on it. The
// lock is released when the file is closed.
func openLocked(path string, flag, how int) (*os.File, error) {
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return f, nil
}

// WriteFile replaces the contents of path under an exclusive lock, so a
// concurrent Load never reads a half-written file.
func WriteFile(path string, data []byte) error {
	f, err := openLocked(path, os.O_WRONLY|os.O_CREATE, unix.LOCK_EX)
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
