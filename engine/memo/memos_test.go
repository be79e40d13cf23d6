package memo

import (
	"encoding/json"
	"testing"

	"github.com/compozy/guidebook/engine/choices"
	"github.com/compozy/guidebook/engine/core"
	"github.com/compozy/guidebook/engine/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMemo(t *testing.T) {
	t.Run("Should record and clear statuses", func(t *testing.T) {
		m := NewStatusMemo()
		m.Set("a", core.StatusSuccess)
		m.Set("b", core.StatusError)
		assert.Equal(t, core.StatusSuccess, m.Get("a"))
		assert.Equal(t, core.StatusBlank, m.Get("missing"))

		m.Set("b", core.StatusBlank)
		assert.Equal(t, 1, m.Len())
	})

	t.Run("Should treat a nil memo as unknown", func(t *testing.T) {
		var m *StatusMemo
		assert.Equal(t, core.StatusBlank, m.Get("a"))
		m.Set("a", core.StatusSuccess)
		assert.Equal(t, 0, m.Len())
	})

	t.Run("Should round-trip through JSON", func(t *testing.T) {
		m := NewStatusMemo()
		m.Set("a", core.StatusSuccess)
		data, err := json.Marshal(m)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":"success"}`, string(data))

		restored := NewStatusMemo()
		require.NoError(t, json.Unmarshal(data, restored))
		assert.Equal(t, core.StatusSuccess, restored.Get("a"))
	})
}

func TestSuggestionsFrom(t *testing.T) {
	t.Run("Should seed suggestions from a prior choice state", func(t *testing.T) {
		prior := choices.FromValues(map[string]string{"pick": "y"})
		require.NoError(t, prior.FormComplete("cfg", map[string]string{"Name": "v"}))

		s := SuggestionsFrom(prior)
		v, ok := s.Get("pick")
		require.True(t, ok)
		assert.Equal(t, "y", v)
		v, ok = s.Get("cfg")
		require.True(t, ok)
		assert.JSONEq(t, `{"Name":"v"}`, v)
	})
}

func TestMemos_Validated(t *testing.T) {
	t.Run("Should cache successful validations until purged", func(t *testing.T) {
		m := New(0)
		task := &graph.Task{ID: "a", Validate: "which git"}
		assert.False(t, m.Validated(task))

		m.RememberValidated(task)
		assert.True(t, m.Validated(task))
		assert.False(t, m.Validated(&graph.Task{ID: "a", Validate: "which hg"}))

		m.ForgetValidations()
		assert.False(t, m.Validated(task))
	})

	t.Run("Should report memoized task status", func(t *testing.T) {
		m := New(4)
		task := &graph.Task{ID: "a"}
		m.StatusMemo.Set("a", core.StatusSuccess)
		assert.Equal(t, core.StatusSuccess, m.StatusOf(task))
	})

	t.Run("Should keep scratch statuses away from the original", func(t *testing.T) {
		m := New(0)
		m.StatusMemo.Set("a", core.StatusSuccess)
		scratch := m.Scratch()
		scratch.StatusMemo.Set("b", core.StatusSuccess)
		assert.Equal(t, core.StatusSuccess, scratch.StatusMemo.Get("a"))
		assert.Equal(t, core.StatusBlank, m.StatusMemo.Get("b"))
		assert.Same(t, m.Suggestions, scratch.Suggestions)
	})
}
