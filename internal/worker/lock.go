package worker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrAlreadyRunning = errors.New("another worker holds the lock")

// InstanceLock keeps a second worker on the same host from consuming the
// queue and driving the same printer.
type InstanceLock struct {
	path string
	lock *flock.Flock
}

func AcquireLock(path string) (*InstanceLock, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock directory: %w", err)
		}
	}

	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, path)
	}
	return &InstanceLock{path: path, lock: l}, nil
}

func (l *InstanceLock) Path() string {
	return l.path
}

func (l *InstanceLock) Release() error {
	return l.lock.Unlock()
}
