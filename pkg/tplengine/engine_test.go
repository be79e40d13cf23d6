package tplengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderString(t *testing.T) {
	t.Run("Should pass through strings without template markers", func(t *testing.T) {
		e := NewEngine()
		out, err := e.RenderString(`python3 "$MWFILENAME"`, nil)
		require.NoError(t, err)
		assert.Equal(t, `python3 "$MWFILENAME"`, out)
	})

	t.Run("Should render context values with sprig functions", func(t *testing.T) {
		e := NewEngine()
		out, err := e.RenderString(`run {{ .File | quote }} in {{ .Dir | upper }}`, map[string]any{
			"File": "/tmp/a.py",
			"Dir":  "tmp",
		})
		require.NoError(t, err)
		assert.Equal(t, `run "/tmp/a.py" in TMP`, out)
	})

	t.Run("Should fail on missing keys", func(t *testing.T) {
		e := NewEngine()
		_, err := e.RenderString(`{{ .Nope }}`, map[string]any{})
		assert.Error(t, err)
	})
}

func TestRender(t *testing.T) {
	t.Run("Should render named templates with global values", func(t *testing.T) {
		e := NewEngine().WithGlobalValues(map[string]any{"Shell": "bash"})
		require.NoError(t, e.AddTemplate("wrap", `{{ .Shell }} -c {{ .Body | squote }}`))

		out, err := e.Render("wrap", map[string]any{"Body": "echo hi"})
		require.NoError(t, err)
		assert.Equal(t, `bash -c 'echo hi'`, out)
	})

	t.Run("Should report unknown templates", func(t *testing.T) {
		_, err := NewEngine().Render("missing", nil)
		assert.Error(t, err)
	})
}
