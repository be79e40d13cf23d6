package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSatisfies(t *testing.T) {
	t.Run("Should pass when constraint is empty", func(t *testing.T) {
		ok, err := Satisfies("1.0.0", "")
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("Should check semver constraints", func(t *testing.T) {
		ok, err := Satisfies("1.4.2", ">= 1.2, < 2")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = Satisfies("v2.0.0", ">= 1.2, < 2")
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("Should let development builds through", func(t *testing.T) {
		ok, err := Satisfies("unknown", ">= 1.0")
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("Should reject malformed constraints", func(t *testing.T) {
		_, err := Satisfies("1.0.0", ">>> nope")
		assert.Error(t, err)
	})
}

func TestGet(t *testing.T) {
	t.Run("Should prefer injected build variables", func(t *testing.T) {
		orig := Version
		t.Cleanup(func() { Version = orig })
		Version = "v9.9.9"
		assert.Equal(t, "v9.9.9", Get().Version)
	})
}
