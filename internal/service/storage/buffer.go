package storage

import (
	"math"
	"sync"
	"time"

	"zonewatch/internal/model"
)

// CapacityFor returns how many frames cover duration at fps, at least one.
func CapacityFor(duration time.Duration, fps float64) int {
	n := int(math.Round(duration.Seconds() * fps))
	if n < 1 {
		return 1
	}
	return n
}

// FrameBuffer keeps the most recent frames in a fixed-size ring.
// Push overwrites the oldest entry when full; it never blocks or fails.
type FrameBuffer struct {
	frames  []model.Frame
	head    int // index of the oldest frame
	count   int
	evicted uint64
	mu      sync.Mutex
}

// NewFrameBuffer creates a buffer holding at most capacity frames.
func NewFrameBuffer(capacity int) *FrameBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameBuffer{frames: make([]model.Frame, capacity)}
}

// Push appends a frame, evicting the oldest one if the buffer is full.
func (b *FrameBuffer) Push(frame model.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.frames)
	if b.count < capacity {
		b.frames[(b.head+b.count)%capacity] = frame
		b.count++
		return
	}

	b.frames[b.head] = frame
	b.head = (b.head + 1) % capacity
	b.evicted++
}

// Snapshot returns the held frames oldest first. The returned slice is a
// private copy; later pushes do not affect it.
func (b *FrameBuffer) Snapshot() []model.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]model.Frame, b.count)
	capacity := len(b.frames)
	for i := 0; i < b.count; i++ {
		out[i] = b.frames[(b.head+i)%capacity]
	}
	return out
}

// Len returns the number of frames currently held.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the fixed capacity.
func (b *FrameBuffer) Cap() int {
	return len(b.frames)
}

// Evicted returns how many frames were overwritten so far.
func (b *FrameBuffer) Evicted() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evicted
}
