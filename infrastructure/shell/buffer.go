package shell

import (
	"bytes"
	"sync"
)

// DefaultMaxOutput caps captured stdout and stderr (1MB each).
const DefaultMaxOutput = 1 << 20

// limitBuffer captures up to limit bytes and silently drops the rest.
// Writes always report full success so the interpreter never sees a short
// write.
type limitBuffer struct {
	buf       bytes.Buffer
	limit     int
	mu        sync.Mutex
	truncated bool
}

func newLimitBuffer(limit int) *limitBuffer {
	return &limitBuffer{limit: limit}
}

func (b *limitBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.limit - b.buf.Len()
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.truncated = true
		b.buf.Write(p[:room])
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *limitBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
