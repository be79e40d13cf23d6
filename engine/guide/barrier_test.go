package guide

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/compozy/guidebook/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrier(t *testing.T) {
	t.Run("Should release jobs strictly in index order", func(t *testing.T) {
		b := newBarrier(5)
		b.markDone(0, core.StatusSuccess)
		var mu sync.Mutex
		var order []int
		var wg sync.WaitGroup
		for i := 5; i >= 1; i-- {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := b.wait(context.Background(), i-1)
				require.NoError(t, err)
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				b.markDone(i, core.StatusSuccess)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, []int{1, 2, 3, 4, 5}, order)
		require.NoError(t, b.waitAll(context.Background()))
	})

	t.Run("Should report the status of the awaited job", func(t *testing.T) {
		b := newBarrier(1)
		b.markDone(1, core.StatusError)
		b.markDone(1, core.StatusSuccess)
		status, err := b.wait(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, core.StatusError, status)
	})

	t.Run("Should stop waiting when the context ends", func(t *testing.T) {
		b := newBarrier(1)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := b.wait(ctx, 1)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
