// Package store persists choice profiles and the task status memo between
// runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/afero"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o644

	lockAttempts  = 8
	lockBaseDelay = 25 * time.Millisecond
)

var errLockBusy = errors.New("lock is held by another process")

type Option func(*fileStore)

// WithLocking guards reads and writes with an advisory lock file next to
// the target. It only applies to stores backed by the OS filesystem.
func WithLocking(enabled bool) Option {
	return func(s *fileStore) { s.locking = enabled }
}

type fileStore struct {
	fs      afero.Fs
	locking bool
}

func newFileStore(fsys afero.Fs, opts ...Option) fileStore {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	s := fileStore{fs: fsys}
	for _, opt := range opts {
		opt(&s)
	}
	if _, ok := fsys.(*afero.OsFs); !ok {
		s.locking = false
	}
	return s
}

func (s fileStore) onDisk() bool {
	_, ok := s.fs.(*afero.OsFs)
	return ok
}

// withLock runs fn while holding the lock for path, retrying with
// exponential backoff while another process holds it.
func (s fileStore) withLock(ctx context.Context, path string, fn func() error) error {
	if !s.locking {
		return fn()
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	lock := flock.New(path + ".lock")
	backoff := retry.WithMaxRetries(lockAttempts, retry.NewExponential(lockBaseDelay))
	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		locked, err := lock.TryLock()
		if err != nil {
			return err
		}
		if !locked {
			return retry.RetryableError(errLockBusy)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer func() {
		_ = lock.Unlock()
	}()
	return fn()
}

// read returns the file content, or nil when it does not exist.
func (s fileStore) read(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// write replaces path by renaming a fully written sibling over it.
func (s fileStore) write(path string, data []byte) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, filePermissions); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
