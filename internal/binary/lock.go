package binary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	// StaleLockThreshold is the maximum age of a lock before it's considered stale.
	StaleLockThreshold = 10 * time.Minute
	// lockPollInterval is the delay between acquisition attempts.
	lockPollInterval = 100 * time.Millisecond
)

var ErrLockExists = errors.New("provisioning lock exists: another process may be downloading")

// Lock is an exclusive provisioning lock shared between processes.
type Lock struct {
	path string
	file *os.File
}

// LockPath returns the lock file guarding one artifact.
func LockPath(d *Descriptor) string {
	return filepath.Join(filepath.Dir(d.FinalPath), "."+d.Name+".lock")
}

// TryLock attempts to acquire the lock at lockPath without waiting.
// Uses O_CREATE|O_EXCL for atomic lock creation.
func TryLock(lockPath string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if isStale, _ := isLockStale(lockPath); !isStale {
			return nil, ErrLockExists
		}
		// Remove stale lock and retry once
		os.Remove(lockPath)
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
		if err != nil {
			return nil, ErrLockExists
		}
	}

	lockData := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &Lock{path: lockPath, file: file}, nil
}

// AcquireLock waits until the lock at lockPath is free or ctx is done.
func AcquireLock(ctx context.Context, lockPath string) (*Lock, error) {
	var lock *Lock
	err := retry.Do(ctx, retry.NewConstant(lockPollInterval), func(ctx context.Context) error {
		l, err := TryLock(lockPath)
		if errors.Is(err, ErrLockExists) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		lock = l
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	return lock, nil
}

// Release releases the lock.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
	}

	return nil
}

// isLockStale checks if a lock file is older than the stale lock threshold.
func isLockStale(lockPath string) (bool, error) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}

	age := time.Since(info.ModTime())
	return age > StaleLockThreshold, nil
}
