package guidebook

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	DefaultIncludes = []string{"**/*.guidebook.yaml", "**/*.guidebook.yml"}
	DefaultExcludes = []string{".git/**", "node_modules/**", "**/.*/**"}
)

// Discoverer finds guidebook files under a root directory.
type Discoverer struct {
	root string
}

func NewDiscoverer(root string) *Discoverer {
	return &Discoverer{root: root}
}

// Discover returns the sorted files matching any include pattern and no
// exclude pattern. Empty includes fall back to DefaultIncludes.
func (d *Discoverer) Discover(includes, excludes []string) ([]string, error) {
	if len(includes) == 0 {
		includes = DefaultIncludes
	}
	found := make(map[string]bool)
	for _, pattern := range includes {
		if err := validatePattern(pattern); err != nil {
			return nil, err
		}
		matches, err := doublestar.FilepathGlob(filepath.Join(d.root, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			rel, err := filepath.Rel(d.root, match)
			if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
				return nil, fmt.Errorf("match %s escapes root %s", match, d.root)
			}
			found[match] = true
		}
	}
	patterns := make([]string, 0, len(DefaultExcludes)+len(excludes))
	for _, pattern := range append(slices.Clone(DefaultExcludes), excludes...) {
		patterns = append(patterns, filepath.ToSlash(pattern))
	}
	files := make([]string, 0, len(found))
	for file := range found {
		if d.excluded(file, patterns) {
			continue
		}
		files = append(files, file)
	}
	slices.Sort(files)
	return files, nil
}

func validatePattern(pattern string) error {
	clean := filepath.Clean(pattern)
	if filepath.IsAbs(clean) {
		return fmt.Errorf("invalid pattern: absolute paths not allowed: %s", pattern)
	}
	if slices.Contains(strings.Split(clean, string(filepath.Separator)), "..") {
		return fmt.Errorf("invalid pattern: parent directory references not allowed: %s", pattern)
	}
	return nil
}

func (d *Discoverer) excluded(file string, patterns []string) bool {
	rel, err := filepath.Rel(d.root, file)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(file)
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}
