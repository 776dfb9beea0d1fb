// Package instance keeps two bridge processes from serving the same config.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("another instance is already running")

// Lock is an exclusive advisory file lock.
type Lock struct {
	path string
	fl   *flock.Flock
}

// PathFor derives the lock file for a config file: "<dir>/.<base>.lock".
func PathFor(configPath string) string {
	dir, base := filepath.Split(configPath)
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "."+base+".lock")
}

// Acquire takes the lock at path without blocking.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("lock dir: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, path)
	}
	return &Lock{path: path, fl: fl}, nil
}

func (l *Lock) Path() string { return l.path }

// Release unlocks and removes the lock file. Safe on nil.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	_ = os.Remove(l.path)
	return nil
}
