package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/compozy/guidebook/engine/memo"
)

// StatusStore persists the task status memo of one user.
type StatusStore struct {
	fileStore
	path string
}

func NewStatusStore(fsys afero.Fs, path string, opts ...Option) *StatusStore {
	return &StatusStore{fileStore: newFileStore(fsys, opts...), path: path}
}

// DefaultStatusPath returns the status memo file under base, or under the
// user's cache directory when base is empty.
func DefaultStatusPath(base string) (string, error) {
	if base == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return "", fmt.Errorf("failed to locate user cache directory: %w", err)
		}
		base = filepath.Join(dir, appDir)
	}
	return filepath.Join(base, "status.json"), nil
}

func (s *StatusStore) Path() string {
	return s.path
}

// Load returns the stored memo, or an empty one when nothing was saved.
func (s *StatusStore) Load(ctx context.Context) (*memo.StatusMemo, error) {
	var data []byte
	err := s.withLock(ctx, s.path, func() error {
		var readErr error
		data, readErr = s.read(s.path)
		return readErr
	})
	if err != nil {
		return nil, err
	}
	m := memo.NewStatusMemo()
	if data == nil {
		return m, nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to decode status memo %s: %w", s.path, err)
	}
	return m, nil
}

func (s *StatusStore) Save(ctx context.Context, m *memo.StatusMemo) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode status memo: %w", err)
	}
	return s.withLock(ctx, s.path, func() error {
		return s.write(s.path, data)
	})
}

// Clear removes the stored memo.
func (s *StatusStore) Clear(ctx context.Context) error {
	return s.withLock(ctx, s.path, func() error {
		data, err := s.read(s.path)
		if err != nil || data == nil {
			return err
		}
		return s.fs.Remove(s.path)
	})
}
