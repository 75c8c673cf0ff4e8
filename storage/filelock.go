package storage

import (
	"context"
	"os"
	"time"
)

// lockPollInterval is how often Lock retries a held lock.
const lockPollInterval = 10 * time.Millisecond

// FileLock is an advisory, cross-process lock on path + ".lock".
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a file lock. The lock is not acquired until Lock is called.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path + ".lock"}
}

// Lock acquires the lock, polling until timeout elapses or ctx is done.
// It returns ErrLockTimeout when the lock stays held by someone else.
func (l *FileLock) Lock(ctx context.Context, timeout time.Duration) error {
	var err error
	l.file, err = os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return &StorageError{Op: "lock", Entity: "file", ID: l.path, Err: err}
	}

	deadline := time.Now().Add(timeout)
	for {
		if lockFile(l.file) == nil {
			return nil
		}
		if !time.Now().Before(deadline) {
			err = ErrLockTimeout
			break
		}
		if err = wait(ctx, lockPollInterval); err != nil {
			break
		}
	}

	l.file.Close()
	l.file = nil
	return &StorageError{Op: "lock", Entity: "file", ID: l.path, Err: err}
}

// Unlock releases the lock and removes the lock file. Unlocking a lock that
// is not held is a no-op.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	unlockFile(l.file)
	l.file.Close()
	os.Remove(l.path)
	l.file = nil
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
