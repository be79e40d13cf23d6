package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	data       map[string]any
	sourceType SourceType
}

func (m *mockSource) Load() (map[string]any, error) { return m.data, nil }
func (m *mockSource) Type() SourceType                { return m.sourceType }
func (m *mockSource) Close() error                    { return nil }

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("Should load default configuration when no sources provided", func(t *testing.T) {
		cfg, err := NewService().Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "auto", cfg.Run.Mode)
		assert.True(t, cfg.Run.Interactive)
		assert.Equal(t, "default", cfg.Run.Profile)
		assert.Equal(t, "sh", cfg.Exec.Shell)
		assert.True(t, cfg.Optimize.Enabled)
		assert.Equal(t, 512, cfg.Store.ValidationCacheSize)
	})

	t.Run("Should let CLI values win over YAML values", func(t *testing.T) {
		svc := NewService()
		yamlSrc := &mockSource{sourceType: SourceYAML, data: map[string]any{
			"run":  map[string]any{"mode": "step", "concurrency": 2},
			"exec": map[string]any{"shell": "bash"},
		}}
		cliSrc := &mockSource{sourceType: SourceCLI, data: map[string]any{
			"run": map[string]any{"mode": "dry-run"},
		}}
		cfg, err := svc.Load(ctx, cliSrc, yamlSrc)
		require.NoError(t, err)
		assert.Equal(t, "dry-run", cfg.Run.Mode)
		assert.Equal(t, 2, cfg.Run.Concurrency)
		assert.Equal(t, "bash", cfg.Exec.Shell)
		assert.Equal(t, SourceCLI, svc.GetSource("run.mode"))
		assert.Equal(t, SourceYAML, svc.GetSource("exec.shell"))
		assert.Equal(t, SourceDefault, svc.GetSource("exec.python"))
	})

	t.Run("Should read environment variables named by env tags", func(t *testing.T) {
		t.Setenv("GUIDEBOOK_EXEC_PYTHON", "python3.12")
		t.Setenv("GUIDEBOOK_RUN_INTERACTIVE", "false")
		svc := NewService()
		cfg, err := svc.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "python3.12", cfg.Exec.Python)
		assert.False(t, cfg.Run.Interactive)
		assert.Equal(t, SourceEnv, svc.GetSource("exec.python"))
	})

	t.Run("Should map the legacy profiles variable", func(t *testing.T) {
		t.Setenv("MWPROFILES_PATH", "/legacy")
		cfg, err := NewService().Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "/legacy", cfg.Store.ProfilesPath)
	})

	t.Run("Should prefer the primary variable over its alias", func(t *testing.T) {
		t.Setenv("MWPROFILES_PATH", "/legacy")
		t.Setenv("GUIDEBOOK_STORE_PROFILES_PATH", "/primary")
		cfg, err := NewService().Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "/primary", cfg.Store.ProfilesPath)
	})

	t.Run("Should parse day based durations", func(t *testing.T) {
		src := &mockSource{sourceType: SourceYAML, data: map[string]any{
			"exec": map[string]any{"timeout": "1d2h"},
		}}
		cfg, err := NewService().Load(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, 26*time.Hour, cfg.Exec.Timeout)
	})

	t.Run("Should keep shortcut names intact", func(t *testing.T) {
		src := &mockSource{sourceType: SourceYAML, data: map[string]any{
			"exec": map[string]any{"shortcuts": map[string]any{"k8s": "kubectl apply -f {{.File}}"}},
		}}
		cfg, err := NewService().Load(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, "kubectl apply -f {{.File}}", cfg.Exec.Shortcuts["k8s"])
	})

	t.Run("Should reject an unknown mode", func(t *testing.T) {
		src := &mockSource{sourceType: SourceCLI, data: map[string]any{"run": map[string]any{"mode": "turbo"}}}
		_, err := NewService().Load(ctx, src)
		assert.ErrorContains(t, err, "validation failed")
	})

	t.Run("Should reject step mode without interaction", func(t *testing.T) {
		src := &mockSource{sourceType: SourceCLI, data: map[string]any{
			"run": map[string]any{"mode": "step", "interactive": false},
		}}
		_, err := NewService().Load(ctx, src)
		assert.ErrorContains(t, err, "step mode requires an interactive run")
	})

	t.Run("Should require a metrics path when monitoring", func(t *testing.T) {
		src := &mockSource{sourceType: SourceYAML, data: map[string]any{
			"monitoring": map[string]any{"enabled": true},
		}}
		_, err := NewService().Load(ctx, src)
		assert.ErrorContains(t, err, "metrics file path")
	})
}

func TestProviders(t *testing.T) {
	t.Run("Should map CLI flags onto config paths", func(t *testing.T) {
		data, err := NewCLIProvider(map[string]any{
			"mode":         "step",
			"metrics-file": "run.prom",
			"unknown":      true,
		}).Load()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"run":        map[string]any{"mode": "step"},
			"monitoring": map[string]any{"path": "run.prom"},
		}, data)
	})

	t.Run("Should read YAML files and ignore missing ones", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "guidebook.yaml")
		require.NoError(t, os.WriteFile(path, []byte("run:\n  profile: work\n  mode:\n"), 0o644))
		data, err := NewYAMLProvider(path).Load()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"run": map[string]any{"profile": "work"}}, data)

		data, err = NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).Load()
		require.NoError(t, err)
		assert.Empty(t, data)
	})
}

func TestManager(t *testing.T) {
	t.Run("Should expose the loaded configuration through the context", func(t *testing.T) {
		m := NewManager(nil)
		_, err := m.Load(context.Background(), &mockSource{sourceType: SourceCLI, data: map[string]any{
			"run": map[string]any{"profile": "ci"},
		}})
		require.NoError(t, err)
		ctx := ContextWithManager(context.Background(), m)
		assert.Equal(t, "ci", FromContext(ctx).Run.Profile)

		cfg, err := m.Reload(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ci", cfg.Run.Profile)
		require.NoError(t, m.Close(ctx))
	})

	t.Run("Should fall back to defaults without a manager", func(t *testing.T) {
		cfg := FromContext(context.Background())
		require.NotNil(t, cfg)
		assert.Equal(t, "sh", cfg.Exec.Shell)
	})
}

func TestGenerateEnvMappings(t *testing.T) {
	t.Run("Should expose every variable of a multi-name tag", func(t *testing.T) {
		assert.Equal(t, "GUIDEBOOK_STORE_PROFILES_PATH", GetEnvVarForConfigPath("store.profiles_path"))
		var found bool
		for _, m := range GenerateEnvMappings() {
			if m.EnvVar == "MWPROFILES_PATH" {
				found = m.ConfigPath == "store.profiles_path"
			}
		}
		assert.True(t, found)
	})
}
