package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofrs/flock"
)

const (
	lockFileSuffix = ".lock"
)

var unsafeLockChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// RunLock keeps two renewals of the same server from running at once on one
// host.
type RunLock struct {
	lock *flock.Flock
	path string
}

// NewRunLock creates a lock file for key under dir (the system temp dir when
// dir is empty).
func NewRunLock(dir, key string) (*RunLock, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create lock dir: %w", err)
	}
	name := "ghrenew-" + unsafeLockChars.ReplaceAllString(key, "_") + lockFileSuffix
	lockPath := filepath.Join(dir, name)
	return &RunLock{
		lock: flock.New(lockPath),
		path: lockPath,
	}, nil
}

func (l *RunLock) Path() string {
	return l.path
}

// TryLock acquires the lock without waiting. It reports false when another
// process holds it.
func (l *RunLock) TryLock() (bool, error) {
	locked, err := l.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	return locked, nil
}

// Lock acquires the lock, waiting if necessary.
// It will print a message if it has to wait.
func (l *RunLock) Lock() error {
	locked, err := l.TryLock()
	if err != nil {
		return err
	}

	if !locked {
		fmt.Fprintf(os.Stderr, "Another ghrenew run is renewing this server, waiting for it to finish...\n")
		if err := l.lock.Lock(); err != nil {
			return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
		}
	}
	return nil
}

// Unlock releases the lock.
func (l *RunLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		// Suppress error if the lock file doesn't exist, as it means we don't hold the lock.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// GetAbsDBPath resolves the history database path.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "ghrenew", "history.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
