// Package file provides file-level utilities, currently exclusive locking
// of a storage data directory so two engine processes cannot open the same
// files.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/linchenxuan/kvutil/log"
)

// ErrAlreadyLocked is returned when another process holds the lock.
var ErrAlreadyLocked = errors.New("data directory already locked")

// lockFileName is the marker file created inside the locked directory.
const lockFileName = "LOCK"

var _fileMode fs.FileMode = 0o600

// DirLock holds an exclusive advisory lock on a data directory. The lock is
// backed by flock on a marker file inside the directory and is released by
// the kernel if the process dies, so a crashed owner never wedges the
// directory.
type DirLock struct {
	dir  string
	file *os.File
}

// NewDirLock creates an unlocked handle for the given directory.
func NewDirLock(dir string) *DirLock {
	return &DirLock{dir: dir}
}

// Path returns the marker file the lock is backed by.
func (l *DirLock) Path() string {
	return filepath.Join(l.dir, lockFileName)
}

// TryLock acquires the lock without blocking. The owning PID is written
// into the marker file for operator inspection; it is informational only,
// the flock is what protects the directory.
func (l *DirLock) TryLock() error {
	if l.file != nil {
		return nil
	}
	f, err := os.OpenFile(l.Path(), os.O_RDWR|os.O_CREATE, _fileMode)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", l.Path()).Msg("close lock file failed")
		}
		return fmt.Errorf("%w: %s", ErrAlreadyLocked, l.dir)
	}
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	}
	l.file = f
	log.Info().Str("dir", l.dir).Msg("data directory locked")
	return nil
}

// Unlock releases the lock and closes the marker file. Safe to call on an
// unlocked handle.
func (l *DirLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		_ = f.Close()
		return fmt.Errorf("unlock %s: %w", l.dir, err)
	}
	return f.Close()
}

// IsLocked reports whether another process currently holds the lock on dir.
func IsLocked(dir string) bool {
	l := NewDirLock(dir)
	if err := l.TryLock(); err != nil {
		return true
	}
	if err := l.Unlock(); err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("unlock probe failed")
	}
	return false
}
