package guidebook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/guidebook/engine/core"
)

const sample = `
title: Getting started
description: Install and configure the CLI
requires: ">= 0.1"
steps:
  - task:
      body: echo A
      language: shell
  - subtask:
      title: Tools
      steps:
        - task:
            body: brew install jq
            validate: which jq
  - choice:
      title: Pick one
      tiles:
        - title: x
          steps:
            - task:
                body: echo X
        - title: y
          steps:
            - task:
                body: echo Y
  - steps:
      - task:
          body: echo done
`

func TestParse(t *testing.T) {
	t.Run("Should decode every kind of step", func(t *testing.T) {
		doc, err := Parse([]byte(sample))
		require.NoError(t, err)
		assert.Equal(t, "Getting started", doc.Title)
		assert.Equal(t, ">= 0.1", doc.Requires)
		require.Len(t, doc.Steps, 4)
		assert.Equal(t, "echo A", doc.Steps[0].Task.Body)
		assert.Equal(t, "which jq", doc.Steps[1].SubTask.Steps[0].Task.Validate)
		assert.Len(t, doc.Steps[2].Choice.Tiles, 2)
		assert.Equal(t, "echo done", doc.Steps[3].Steps[0].Task.Body)
	})
	t.Run("Should reject steps holding more than one kind", func(t *testing.T) {
		_, err := Parse([]byte(`
title: Bad
steps:
  - task:
      body: echo
    choice:
      title: c
      tiles:
        - title: t
`))
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.ErrCodeCompile))
	})
	t.Run("Should reject choices without tiles", func(t *testing.T) {
		_, err := Parse([]byte("title: Bad\nsteps:\n  - choice:\n      title: c\n"))
		assert.True(t, core.HasCode(err, core.ErrCodeCompile))
	})
	t.Run("Should reject unknown keys", func(t *testing.T) {
		_, err := Parse([]byte("title: Bad\nsteps:\n  - task:\n      body: x\n      shell: bash\n"))
		assert.True(t, core.HasCode(err, core.ErrCodeCompile))
	})
	t.Run("Should reject tasks without a body", func(t *testing.T) {
		_, err := Parse([]byte("title: Bad\nsteps:\n  - task:\n      language: shell\n"))
		assert.True(t, core.HasCode(err, core.ErrCodeCompile))
	})
}

func TestLoad(t *testing.T) {
	t.Run("Should load from the given filesystem and remember the source", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/books/start.guidebook.yaml", []byte(sample), 0o644))
		doc, err := Load(fs, "/books/start.guidebook.yaml")
		require.NoError(t, err)
		assert.Equal(t, "/books/start.guidebook.yaml", doc.Source)
	})
	t.Run("Should fail on missing files", func(t *testing.T) {
		_, err := Load(afero.NewMemMapFs(), "/nope.yaml")
		assert.Error(t, err)
	})
}

func TestDiscoverer(t *testing.T) {
	root := t.TempDir()
	write := func(rel string) string {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
		return path
	}
	a := write("a.guidebook.yaml")
	b := write("nested/b.guidebook.yml")
	write("node_modules/pkg/c.guidebook.yaml")
	write("notes.yaml")

	t.Run("Should find guidebooks with default patterns", func(t *testing.T) {
		files, err := NewDiscoverer(root).Discover(nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{a, b}, files)
	})
	t.Run("Should honor extra excludes", func(t *testing.T) {
		files, err := NewDiscoverer(root).Discover(nil, []string{"nested/**"})
		require.NoError(t, err)
		assert.Equal(t, []string{a}, files)
	})
	t.Run("Should reject patterns escaping the root", func(t *testing.T) {
		_, err := NewDiscoverer(root).Discover([]string{"../*.yaml"}, nil)
		assert.Error(t, err)
	})
}
