package guide

import (
	"context"
	"sync"

	"github.com/compozy/guidebook/engine/core"
)

// barrier orders side effects across concurrently presented jobs: job i
// may act only once job i-1 has finished. Index 0 is a sentinel marked
// done before any job starts.
type barrier struct {
	mu       sync.Mutex
	statuses []core.Status
	done     []chan struct{}
}

func newBarrier(jobs int) *barrier {
	b := &barrier{
		statuses: make([]core.Status, jobs+1),
		done:     make([]chan struct{}, jobs+1),
	}
	for i := range b.done {
		b.done[i] = make(chan struct{})
	}
	return b
}

// markDone records the terminal status of job i and releases its waiter.
// Marking the same index twice is a no-op.
func (b *barrier) markDone(i int, status core.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.done[i]:
		return
	default:
	}
	b.statuses[i] = status
	close(b.done[i])
}

// wait blocks until job i is done and returns its status.
func (b *barrier) wait(ctx context.Context, i int) (core.Status, error) {
	select {
	case <-b.done[i]:
	case <-ctx.Done():
		return core.StatusBlank, ctx.Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statuses[i], nil
}

// waitAll blocks until every job is done.
func (b *barrier) waitAll(ctx context.Context) error {
	for i := range b.done {
		if _, err := b.wait(ctx, i); err != nil {
			return err
		}
	}
	return nil
}
