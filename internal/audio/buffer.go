package audio

import (
	"sync"
)

// bytesPerSample is fixed at 2: all streaming audio is PCM16 mono.
const bytesPerSample = 2

// Buffer holds the most recent window of streamed audio for one session.
// It is a time-bounded FIFO: pushing past the configured window evicts the
// oldest bytes first, so memory and staleness stay bounded while sustained
// overload degrades completeness instead of stalling the stream.
type Buffer struct {
	maxSizeMs  int
	sampleRate int
	capBytes   int

	chunks     [][]byte
	totalBytes int

	mu sync.Mutex
}

// NewBuffer creates a buffer bounded to maxSizeMs of PCM16 audio at sampleRate.
func NewBuffer(maxSizeMs int, sampleRate int) *Buffer {
	return &Buffer{
		maxSizeMs:  maxSizeMs,
		sampleRate: sampleRate,
		capBytes:   maxSizeMs * sampleRate * bytesPerSample / 1000,
	}
}

// Push appends a chunk and evicts from the front until the total byte count
// is back within the window. Eviction is byte-exact: the retained content is
// always the suffix of everything pushed.
func (b *Buffer) Push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	owned := make([]byte, len(chunk))
	copy(owned, chunk)
	b.chunks = append(b.chunks, owned)
	b.totalBytes += len(owned)

	for b.totalBytes > b.capBytes {
		excess := b.totalBytes - b.capBytes
		front := b.chunks[0]
		if len(front) <= excess {
			b.chunks = b.chunks[1:]
			b.totalBytes -= len(front)
		} else {
			b.chunks[0] = front[excess:]
			b.totalBytes -= excess
		}
	}
}

// GetAll returns the buffered audio as one contiguous byte slice in arrival
// order. The buffer is not mutated.
func (b *Buffer) GetAll() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, 0, b.totalBytes)
	for _, chunk := range b.chunks {
		out = append(out, chunk...)
	}
	return out
}

// Clear resets the buffer to empty.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.totalBytes = 0
}

// SizeBytes returns the current buffered byte count.
func (b *Buffer) SizeBytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalBytes
}

// SizeMs returns the buffered duration in milliseconds.
func (b *Buffer) SizeMs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalBytes * 1000 / (b.sampleRate * bytesPerSample)
}

// HasData reports whether any audio is buffered.
func (b *Buffer) HasData() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalBytes > 0
}

// Capacity returns the maximum byte count the buffer will retain.
func (b *Buffer) Capacity() int {
	return b.capBytes
}
