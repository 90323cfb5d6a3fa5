//go:build darwin || linux

package streaming

import (
	"os"

	"golang.org/x/sys/unix"
)

// fileLock holds an advisory flock(2) on the system's base directory so
// two engine processes never open the same data directory concurrently,
// the same build-tagged-file split the teacher uses for xattr support.
type fileLock struct {
	f *os.File
}

// acquireBaseDirLock takes a non-blocking exclusive advisory lock on dir.
// It returns a CannotOpen error (via wrapOpen) if another process already
// holds it.
func acquireBaseDirLock(dir string) (*fileLock, error) {
	lockPath := dir + "/.lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, wrapOpen("base dir lock", lockPath, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, wrapOpen("base dir lock", lockPath, err)
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}
