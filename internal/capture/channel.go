package capture

import "sync"

// FrameChannel is the bounded conduit between producer and consumer. It
// never blocks either side: TryPush evicts the oldest frame when full and
// TryPop returns immediately when empty. All operations are linearizable
// under a single mutex.
type FrameChannel struct {
	mu       sync.Mutex
	frames   []*Frame
	capacity int
	dropped  uint64
}

// NewFrameChannel creates a channel holding at most capacity frames.
func NewFrameChannel(capacity int) *FrameChannel {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameChannel{
		frames:   make([]*Frame, 0, capacity),
		capacity: capacity,
	}
}

// TryPush inserts a frame, evicting the single oldest entry first if the
// channel is full. It never blocks.
func (c *FrameChannel) TryPush(frame *Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.frames) >= c.capacity {
		copy(c.frames, c.frames[1:])
		c.frames = c.frames[:len(c.frames)-1]
		c.dropped++
	}
	c.frames = append(c.frames, frame)
}

// TryPop removes and returns the oldest frame, or nil/false when empty.
// An empty channel is a normal condition, not an error.
func (c *FrameChannel) TryPop() (*Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.frames) == 0 {
		return nil, false
	}

	frame := c.frames[0]
	copy(c.frames, c.frames[1:])
	c.frames = c.frames[:len(c.frames)-1]
	return frame, true
}

// Len returns the current number of buffered frames.
func (c *FrameChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// Cap returns the channel capacity.
func (c *FrameChannel) Cap() int {
	return c.capacity
}

// Dropped returns how many frames were evicted by TryPush.
func (c *FrameChannel) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
