package session

import "sync"

// LogBufferCapacity is the number of diagnostic lines retained for display
// and export. Oldest lines are evicted first.
const LogBufferCapacity = 250

// LogBuffer is a bounded FIFO ring of diagnostic lines.
// It is safe for concurrent use.
type LogBuffer struct {
	mu    sync.Mutex
	lines []string
	head  int
	count int
}

// NewLogBuffer creates an empty buffer with LogBufferCapacity capacity.
func NewLogBuffer() *LogBuffer {
	return &LogBuffer{
		lines: make([]string, LogBufferCapacity),
	}
}

// Append adds a line, evicting the oldest when the buffer is full.
func (b *LogBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tail := (b.head + b.count) % len(b.lines)
	b.lines[tail] = line
	if b.count == len(b.lines) {
		b.head = (b.head + 1) % len(b.lines)
	} else {
		b.count++
	}
}

// Lines returns the buffered lines in order, oldest first.
func (b *LogBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.lines[(b.head+i)%len(b.lines)]
	}
	return out
}

// Len returns the number of buffered lines.
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
