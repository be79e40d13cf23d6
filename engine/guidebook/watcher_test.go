package guidebook

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher(t *testing.T) {
	t.Run("Should coalesce a burst of writes into one notification", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "setup.guidebook.yaml")
		require.NoError(t, os.WriteFile(path, []byte("title: a\n"), 0o644))

		w, err := NewWatcher(50 * time.Millisecond)
		require.NoError(t, err)
		defer w.Close()
		require.NoError(t, w.Watch(path))
		var calls atomic.Int32
		changed := make(chan string, 4)
		w.OnChange(func(p string) {
			calls.Add(1)
			changed <- p
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = w.Run(ctx) }()

		for i := 0; i < 3; i++ {
			require.NoError(t, os.WriteFile(path, []byte("title: b\n"), 0o644))
		}
		select {
		case p := <-changed:
			abs, err := filepath.Abs(path)
			require.NoError(t, err)
			assert.Equal(t, abs, p)
		case <-time.After(5 * time.Second):
			t.Fatal("no change notification")
		}
		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Should ignore unrelated files in the same directory", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "setup.guidebook.yaml")
		require.NoError(t, os.WriteFile(path, []byte("title: a\n"), 0o644))

		w, err := NewWatcher(20 * time.Millisecond)
		require.NoError(t, err)
		defer w.Close()
		require.NoError(t, w.Watch(path))
		var calls atomic.Int32
		w.OnChange(func(string) { calls.Add(1) })

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = w.Run(ctx) }()

		require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
		time.Sleep(150 * time.Millisecond)
		assert.Zero(t, calls.Load())
	})
}
