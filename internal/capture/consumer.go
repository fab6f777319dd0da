package capture

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uma-tools/uma-assistant/internal/events"
	"github.com/uma-tools/uma-assistant/internal/logging"
)

// DefaultDisplayInterval is the consumer tick cadence when not configured.
const DefaultDisplayInterval = 50 * time.Millisecond

// Consumer drains the frame channel on its own fixed cadence, independent
// of capture latency, and forwards display-ready images as events. Its tick
// never blocks: an empty channel is a normal, silent condition.
type Consumer struct {
	channel *FrameChannel
	bus     events.EventBus
	logger  *logging.Logger

	mu          sync.Mutex
	displaySize Size
	quality     ScaleQuality
	stopCh      chan struct{}
	done        chan struct{}
	startedAt   time.Time

	running      atomic.Bool
	displayCount atomic.Uint64
}

// NewConsumer creates a consumer reading from the given channel.
func NewConsumer(channel *FrameChannel, bus events.EventBus) *Consumer {
	return &Consumer{
		channel:     channel,
		bus:         bus,
		logger:      logging.NewLogger("screen_consumer"),
		displaySize: Size{Width: 640, Height: 640},
		quality:     ScaleFast,
	}
}

// SetDisplaySize changes the active display size, effective from the next
// tick.
func (c *Consumer) SetDisplaySize(size Size) {
	c.mu.Lock()
	c.displaySize = size
	c.mu.Unlock()
	c.logger.DebugWithContext("display size updated", map[string]interface{}{"size": size.Key()})
}

// SetScaleQuality switches the fallback scaling quality.
func (c *Consumer) SetScaleQuality(quality ScaleQuality) {
	c.mu.Lock()
	c.quality = quality
	c.mu.Unlock()
}

// Start launches the display tick at the given interval. Starting an
// already-running consumer is a logged no-op.
func (c *Consumer) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultDisplayInterval
	}
	if !c.running.CompareAndSwap(false, true) {
		c.logger.Warn("consumer already running")
		return
	}

	c.mu.Lock()
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	c.startedAt = time.Now()
	stopCh, done := c.stopCh, c.done
	c.mu.Unlock()

	c.logger.InfoWithContext("frame consumer started", map[string]interface{}{"interval": interval})

	go c.run(interval, stopCh, done)
}

// Stop halts the display tick and waits for it to exit. The tick performs
// no blocking I/O, so the join is immediate.
func (c *Consumer) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}

	c.mu.Lock()
	close(c.stopCh)
	done := c.done
	c.mu.Unlock()

	<-done
	c.logger.Info("frame consumer stopped")
}

// Running reports whether the tick is active.
func (c *Consumer) Running() bool {
	return c.running.Load()
}

// run ticks at a fixed cadence until stopped.
func (c *Consumer) run(interval time.Duration, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick pops at most one frame and forwards its display variant.
func (c *Consumer) tick() {
	frame, ok := c.channel.TryPop()
	if !ok {
		return
	}

	img := c.displayImage(frame)
	if img == nil {
		return
	}

	c.bus.Publish(events.NewDisplayUpdateEvent(img))
	c.displayCount.Add(1)
}

// displayImage selects the pre-scaled variant matching the active display
// size, falling back to an on-demand scale of the original bitmap.
func (c *Consumer) displayImage(frame *Frame) image.Image {
	c.mu.Lock()
	size := c.displaySize
	quality := c.quality
	c.mu.Unlock()

	if img, ok := frame.Variant(size); ok {
		return img
	}
	if frame.Image == nil {
		return nil
	}
	return ScaleToFit(frame.Image, size, quality)
}

// ConsumerStats is a snapshot of the consumer counters.
type ConsumerStats struct {
	DisplayCount uint64
	Uptime       time.Duration
	DisplayRate  float64
	Running      bool
}

// Statistics returns a snapshot safe to call while the tick runs.
func (c *Consumer) Statistics() ConsumerStats {
	stats := ConsumerStats{
		DisplayCount: c.displayCount.Load(),
		Running:      c.running.Load(),
	}
	c.mu.Lock()
	startedAt := c.startedAt
	c.mu.Unlock()
	if !startedAt.IsZero() {
		stats.Uptime = time.Since(startedAt)
		if seconds := stats.Uptime.Seconds(); seconds > 0 {
			stats.DisplayRate = float64(stats.DisplayCount) / seconds
		}
	}
	return stats
}
