// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     capture
// Description: Sample buffers shared between the audio callback and readers
// License:     MIT
// ============================================================================

package capture

import (
	"sync"
	"time"
)

// RingBuffer keeps the most recent samples for analysis windows. Writes
// beyond capacity overwrite the oldest data.
type RingBuffer struct {
	mu       sync.RWMutex
	data     []float32
	size     int
	writePos int
	readPos  int
	count    int
}

// NewRingBuffer creates a ring buffer with the specified capacity
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		data: make([]float32, capacity),
		size: capacity,
	}
}

// Write appends samples, overwriting the oldest data when full
func (rb *RingBuffer) Write(samples []float32) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for _, s := range samples {
		rb.data[rb.writePos] = s
		rb.writePos = (rb.writePos + 1) % rb.size

		if rb.count < rb.size {
			rb.count++
		} else {
			rb.readPos = (rb.readPos + 1) % rb.size
		}
	}
}

// Snapshot returns all buffered samples ordered oldest to newest
func (rb *RingBuffer) Snapshot() []float32 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	samples := make([]float32, rb.count)
	pos := rb.readPos
	for i := 0; i < rb.count; i++ {
		samples[i] = rb.data[pos]
		pos = (pos + 1) % rb.size
	}
	return samples
}

// Len returns the number of buffered samples
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Clear discards all buffered samples
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.readPos = 0
	rb.writePos = 0
	rb.count = 0
}

// SampleCounter tracks how much audio a session has captured
type SampleCounter struct {
	mu      sync.RWMutex
	samples int
}

// Add records n captured samples
func (c *SampleCounter) Add(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples += n
}

// Count returns the number of captured samples
func (c *SampleCounter) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.samples
}

// Duration converts the captured sample count to time at the given rate
func (c *SampleCounter) Duration(sampleRate float64) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.samples) / sampleRate * float64(time.Second))
}

// Reset clears the counter
func (c *SampleCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = 0
}
