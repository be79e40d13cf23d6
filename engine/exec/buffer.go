package exec

import (
	"bytes"
	"io"
	"sync"
)

// captureBuffer keeps at most limit bytes of a process's output and
// optionally mirrors everything it receives to another writer. Both stdout
// and stderr may write to it concurrently.
type captureBuffer struct {
	mu        sync.Mutex
	limit     int64
	buffer    bytes.Buffer
	truncated bool
	tee       io.Writer
}

func newCaptureBuffer(limit int64, tee io.Writer) *captureBuffer {
	return &captureBuffer{limit: limit, tee: tee}
}

func (b *captureBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tee != nil {
		_, _ = b.tee.Write(p)
	}
	if b.limit <= 0 {
		return b.buffer.Write(p)
	}
	remaining := b.limit - int64(b.buffer.Len())
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		_, _ = b.buffer.Write(p[:int(remaining)])
		b.truncated = true
		return len(p), nil
	}
	return b.buffer.Write(p)
}

func (b *captureBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

func (b *captureBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
