package exec

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Env is the environment threaded through the dispatch chain. Exported
// assignments land here rather than in the process environment, and every
// spawned process inherits it.
type Env struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewEnv builds an environment from KEY=VALUE pairs, typically os.Environ().
func NewEnv(pairs []string) *Env {
	vars := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		vars[key] = value
	}
	return &Env{vars: vars}
}

// ProcessEnv snapshots the current process environment.
func ProcessEnv() *Env {
	return NewEnv(os.Environ())
}

func (e *Env) Get(key string) string {
	v, _ := e.Lookup(key)
	return v
}

func (e *Env) Lookup(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vars[key]
	return v, ok
}

func (e *Env) Set(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[key] = value
}

// Clone returns an independent copy.
func (e *Env) Clone() *Env {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &Env{vars: maps.Clone(e.vars)}
}

// Environ renders the environment, with overlay applied, as sorted
// KEY=VALUE pairs for exec.Cmd.
func (e *Env) Environ(overlay map[string]string) []string {
	e.mu.RLock()
	merged := maps.Clone(e.vars)
	e.mu.RUnlock()
	maps.Copy(merged, overlay)
	keys := slices.Sorted(maps.Keys(merged))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}

// LoadDotenv seeds the environment from a .env file. A missing file is
// not an error.
func (e *Env) LoadDotenv(path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	maps.Copy(e.vars, values)
	return nil
}
