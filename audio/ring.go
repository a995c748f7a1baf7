package audio

import "sync"

// RingBuffer is a fixed-capacity circular store of float32 samples. Once
// full, new samples overwrite the oldest ones; the audio callback is never
// blocked and never fails. A single mutex serializes the one writer (the
// capture callback) against concurrent snapshot readers.
type RingBuffer struct {
	mu   sync.Mutex
	buf  []float32
	head int // next write position
	size int // live samples, <= len(buf)
}

// NewRingBuffer allocates a buffer holding capacity samples. At the
// pipeline rate of 16 kHz, one second is 16000 samples.
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buf: make([]float32, capacity)}
}

// Append copies samples into the buffer, overwriting the oldest data when
// the write wraps past capacity.
func (rb *RingBuffer) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()

	cap := len(rb.buf)

	// A block larger than the whole buffer reduces to its trailing part.
	if len(samples) >= cap {
		copy(rb.buf, samples[len(samples)-cap:])
		rb.head = 0
		rb.size = cap
		return
	}

	n := copy(rb.buf[rb.head:], samples)
	if n < len(samples) {
		copy(rb.buf, samples[n:])
	}
	rb.head = (rb.head + len(samples)) % cap
	rb.size += len(samples)
	if rb.size > cap {
		rb.size = cap
	}
}

// Snapshot returns the held samples in chronological order without
// mutating the buffer. The result is a copy and safe to keep.
func (rb *RingBuffer) Snapshot() []float32 {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size == 0 {
		return nil
	}
	out := make([]float32, rb.size)
	if rb.size < len(rb.buf) {
		// Not yet wrapped: data occupies [0, size).
		copy(out, rb.buf[:rb.size])
	} else {
		// Full: oldest sample sits at the write head.
		n := copy(out, rb.buf[rb.head:])
		copy(out[n:], rb.buf[:rb.head])
	}
	return out
}

// Clear resets the buffer to empty without reallocating.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	rb.head = 0
	rb.size = 0
	rb.mu.Unlock()
}

// Len returns the number of live samples.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

// Capacity returns the fixed sample capacity.
func (rb *RingBuffer) Capacity() int {
	return len(rb.buf)
}
