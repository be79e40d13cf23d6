package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(level LogLevel, asJSON bool) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLogger(&Config{Level: level, Output: &buf, JSON: asJSON, TimeFormat: "15:04:05"}), &buf
}

func TestFromContext(t *testing.T) {
	t.Run("Should return the logger carried by the context", func(t *testing.T) {
		l, _ := bufferLogger(InfoLevel, false)
		ctx := ContextWithLogger(t.Context(), l)
		assert.Same(t, l, FromContext(ctx))
	})

	t.Run("Should fall back to the default logger", func(t *testing.T) {
		cases := map[string]context.Context{
			"empty":      t.Context(),
			"wrong type": context.WithValue(t.Context(), LoggerCtxKey, "run-42"),
			"nil logger": context.WithValue(t.Context(), LoggerCtxKey, Logger(nil)),
		}
		for name, ctx := range cases {
			assert.Equal(t, GetDefault(), FromContext(ctx), name)
		}
	})
}

func TestToCharmlogLevel(t *testing.T) {
	t.Run("Should map every level and default unknown ones to info", func(t *testing.T) {
		assert.Equal(t, charmlog.DebugLevel, DebugLevel.ToCharmlogLevel())
		assert.Equal(t, charmlog.WarnLevel, WarnLevel.ToCharmlogLevel())
		assert.Equal(t, charmlog.ErrorLevel, ErrorLevel.ToCharmlogLevel())
		assert.Equal(t, disabledCharmLevel, DisabledLevel.ToCharmlogLevel())
		assert.Equal(t, charmlog.InfoLevel, LogLevel("verbose").ToCharmlogLevel())
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Should write text records with their fields", func(t *testing.T) {
		l, buf := bufferLogger(InfoLevel, false)
		l.With("step", 2).Info("task finished", "status", "success")
		out := buf.String()
		assert.Contains(t, out, "task finished")
		for _, part := range []string{"step", "2", "status", "success"} {
			assert.Contains(t, out, part)
		}
	})

	t.Run("Should write JSON records when asked", func(t *testing.T) {
		l, buf := bufferLogger(InfoLevel, true)
		l.Warn("unresolved questions", "count", 3)
		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "warn", record["level"])
		assert.Equal(t, "unresolved questions", record["msg"])
		assert.EqualValues(t, 3, record["count"])
	})

	t.Run("Should filter records below the level", func(t *testing.T) {
		l, buf := bufferLogger(WarnLevel, false)
		l.Debug("probe")
		l.Info("asking")
		l.Error("dispatch failed")
		out := buf.String()
		assert.NotContains(t, out, "probe")
		assert.NotContains(t, out, "asking")
		assert.Contains(t, out, "dispatch failed")
	})

	t.Run("Should write nothing when disabled", func(t *testing.T) {
		l, buf := bufferLogger(DisabledLevel, false)
		l.Error("dispatch failed")
		assert.Zero(t, buf.Len())
	})

	t.Run("Should stay silent without a config under go test", func(t *testing.T) {
		require.True(t, IsTestEnvironment())
		assert.Equal(t, io.Discard, TestConfig().Output)
		assert.NotNil(t, NewLogger(nil))
	})
}

func TestSetupLogger(t *testing.T) {
	t.Run("Should replace the default logger", func(t *testing.T) {
		previous := GetDefault()
		t.Cleanup(func() { defaultLogger = previous })

		SetupLogger("debug", true, false)

		assert.NotSame(t, previous, GetDefault())
		assert.Equal(t, GetDefault(), FromContext(t.Context()))
	})
}
