package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStableHash(t *testing.T) {
	t.Run("Should be stable for typed maps regardless of insertion order", func(t *testing.T) {
		a := map[string]string{"b": "2", "a": "1", "c": "3"}
		b := map[string]string{"c": "3", "b": "2", "a": "1"}
		assert.Equal(t, StableHash(a), StableHash(b))
	})

	t.Run("Should be stable for nested typed maps", func(t *testing.T) {
		a := map[string]map[string]string{"outer": {"b": "2", "a": "1"}}
		b := map[string]map[string]string{"outer": {"a": "1", "b": "2"}}
		assert.Equal(t, StableHash(a), StableHash(b))
	})

	t.Run("Should differ when a value changes", func(t *testing.T) {
		a := map[string]any{"body": "echo A", "path": "steps[0]"}
		b := map[string]any{"body": "echo B", "path": "steps[0]"}
		assert.NotEqual(t, StableHash(a), StableHash(b))
	})

	t.Run("Should truncate short hashes", func(t *testing.T) {
		v := []any{"x", 1.0, true}
		assert.Len(t, ShortHash(v, 12), 12)
		assert.Equal(t, StableHash(v)[:12], ShortHash(v, 12))
		assert.Equal(t, StableHash(v), ShortHash(v, 0))
	})
}
