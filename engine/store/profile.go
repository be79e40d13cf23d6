package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/otiai10/copy"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/compozy/guidebook/engine/choices"
)

const (
	DefaultProfile = "default"
	profileExt     = ".json"
	appDir         = "guidebook"
)

var ErrProfileNotFound = errors.New("profile not found")

// Profile is a named set of answers restored at the start of a run and
// saved at its end.
type Profile struct {
	Name     string         `json:"name"`
	Created  time.Time      `json:"creationTime"`
	Modified time.Time      `json:"lastModifiedTime"`
	LastUsed time.Time      `json:"lastUsedTime"`
	Choices  *choices.State `json:"choices"`
}

// ProfileSummary is the listing view of a profile, read without decoding
// its answers.
type ProfileSummary struct {
	Name     string    `json:"name"`
	LastUsed time.Time `json:"lastUsedTime"`
	Path     string    `json:"path"`
}

type ProfileStore struct {
	fileStore
	dir string
	now func() time.Time
}

func NewProfileStore(fsys afero.Fs, dir string, opts ...Option) *ProfileStore {
	return &ProfileStore{fileStore: newFileStore(fsys, opts...), dir: dir, now: time.Now}
}

// DefaultProfilesPath returns the profiles directory under base, or under
// the user's configuration directory when base is empty.
func DefaultProfilesPath(base string) (string, error) {
	if base == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to locate user data directory: %w", err)
		}
		base = filepath.Join(dir, appDir)
	}
	return filepath.Join(base, "profiles"), nil
}

func (s *ProfileStore) Dir() string {
	return s.dir
}

// Path maps a profile name onto its file.
func (s *ProfileStore) Path(name string) (string, error) {
	file := slug.Make(name)
	if file == "" {
		return "", fmt.Errorf("invalid profile name %q", name)
	}
	return filepath.Join(s.dir, file+profileExt), nil
}

func (s *ProfileStore) Get(ctx context.Context, name string) (*Profile, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.withLock(ctx, path, func() error {
		var readErr error
		data, readErr = s.read(path)
		return readErr
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	p := &Profile{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", name, err)
	}
	if p.Choices == nil {
		p.Choices = choices.New()
	}
	if p.Name == "" {
		p.Name = name
	}
	return p, nil
}

// Restore returns the named profile, or a fresh empty one when it does
// not exist yet.
func (s *ProfileStore) Restore(ctx context.Context, name string) (*Profile, error) {
	p, err := s.Get(ctx, name)
	if errors.Is(err, ErrProfileNotFound) {
		now := s.now()
		return &Profile{Name: name, Created: now, Choices: choices.New()}, nil
	}
	return p, err
}

// Save writes p, stamping its modification and last-use times.
func (s *ProfileStore) Save(ctx context.Context, p *Profile) error {
	path, err := s.Path(p.Name)
	if err != nil {
		return err
	}
	now := s.now()
	if p.Created.IsZero() {
		p.Created = now
	}
	p.Modified = now
	p.LastUsed = now
	if p.Choices == nil {
		p.Choices = choices.New()
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profile %s: %w", p.Name, err)
	}
	return s.withLock(ctx, path, func() error {
		return s.write(path, data)
	})
}

// List returns every stored profile, most recently used first.
func (s *ProfileStore) List(_ context.Context) ([]ProfileSummary, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	var out []ProfileSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), profileExt) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := s.read(path)
		if err != nil || data == nil {
			continue
		}
		meta := gjson.GetManyBytes(data, "name", "lastUsedTime")
		name := meta[0].String()
		if name == "" {
			name = strings.TrimSuffix(entry.Name(), profileExt)
		}
		out = append(out, ProfileSummary{Name: name, LastUsed: meta[1].Time(), Path: path})
	}
	slices.SortStableFunc(out, func(a, b ProfileSummary) int {
		if c := b.LastUsed.Compare(a.LastUsed); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *ProfileStore) Delete(ctx context.Context, name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	return s.withLock(ctx, path, func() error {
		err := s.fs.Remove(path)
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		return err
	})
}

// Export copies the stored profile file to dst.
func (s *ProfileStore) Export(ctx context.Context, name, dst string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	return s.withLock(ctx, path, func() error {
		if s.onDisk() {
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
			}
			return copy.Copy(path, dst)
		}
		data, err := s.read(path)
		if err != nil {
			return err
		}
		if data == nil {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		return afero.WriteFile(s.fs, dst, data, filePermissions)
	})
}
