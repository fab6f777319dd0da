package capture

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uma-tools/uma-assistant/internal/adb"
	"github.com/uma-tools/uma-assistant/internal/events"
	"github.com/uma-tools/uma-assistant/internal/logging"
)

// Bridge is the device-side contract the producer captures through. Each
// capture is an independent external invocation, so implementations must
// tolerate concurrent calls (the background loop and CaptureOnce may
// overlap).
type Bridge interface {
	IsConnected() bool
	CurrentDeviceAddress() (string, bool)
	CaptureRawFrame(timeout time.Duration) ([]byte, error)
}

// Status labels carried on status-changed events.
const (
	StatusCapturing    = "capturing"
	StatusStopped      = "stopped"
	StatusDisconnected = "disconnected"
)

const (
	// DefaultCaptureInterval paces the capture loop when not configured.
	DefaultCaptureInterval = 1 * time.Second

	// MinCaptureInterval is the floor for the loop pace.
	MinCaptureInterval = 100 * time.Millisecond

	// DefaultErrorCooldown is the minimum gap between forwarded errors.
	DefaultErrorCooldown = 5 * time.Second

	// captureTimeout bounds a single screencap invocation so a stuck
	// device cannot prevent shutdown.
	captureTimeout = 10 * time.Second

	// iterationBackoff is the pause after an unexpected panic in one
	// loop iteration.
	iterationBackoff = 1 * time.Second

	// liveFrameLimit is how many frames the producer keeps buffered; it
	// trims older entries before pushing so the consumer stays close to
	// real time even with a larger channel.
	liveFrameLimit = 3
)

// Producer owns the background capture loop: it pulls raw frames from the
// bridge, decodes and pre-scales them, and pushes them into the frame
// channel. No error inside the loop is fatal; only Stop terminates it.
type Producer struct {
	bridge  Bridge
	channel *FrameChannel
	bus     events.EventBus
	logger  *logging.Logger

	mu          sync.Mutex
	interval    time.Duration
	displaySize Size
	quality     ScaleQuality
	cooldown    time.Duration
	lastErrorAt time.Time
	lastStatus  string
	stopCh      chan struct{}
	done        chan struct{}

	startedAt time.Time // guarded by mu

	running      atomic.Bool
	captureCount atomic.Uint64
	errorCount   atomic.Uint64
}

// NewProducer creates a producer feeding the given channel.
func NewProducer(bridge Bridge, channel *FrameChannel, bus events.EventBus) *Producer {
	return &Producer{
		bridge:      bridge,
		channel:     channel,
		bus:         bus,
		logger:      logging.NewLogger("screen_producer"),
		interval:    DefaultCaptureInterval,
		displaySize: Size{Width: 640, Height: 640},
		quality:     ScaleFast,
		cooldown:    DefaultErrorCooldown,
	}
}

// SetCaptureInterval changes the loop pace, clamped to MinCaptureInterval.
// Takes effect on the next iteration.
func (p *Producer) SetCaptureInterval(interval time.Duration) {
	if interval < MinCaptureInterval {
		interval = MinCaptureInterval
	}
	p.mu.Lock()
	p.interval = interval
	p.mu.Unlock()
	p.logger.InfoWithContext("capture interval updated", map[string]interface{}{"interval": interval})
}

// SetDisplaySize adds the active display size to the pre-scale targets.
func (p *Producer) SetDisplaySize(size Size) {
	p.mu.Lock()
	p.displaySize = size
	p.mu.Unlock()
}

// SetScaleQuality switches between fast and smooth scaling.
func (p *Producer) SetScaleQuality(quality ScaleQuality) {
	p.mu.Lock()
	p.quality = quality
	p.mu.Unlock()
}

// SetErrorCooldown changes the error-throttle window.
func (p *Producer) SetErrorCooldown(cooldown time.Duration) {
	p.mu.Lock()
	p.cooldown = cooldown
	p.mu.Unlock()
}

// Start launches the capture loop. Starting an already-running producer is
// a logged no-op.
func (p *Producer) Start() {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Warn("producer already running")
		return
	}

	p.mu.Lock()
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	p.startedAt = time.Now()
	stopCh, done := p.stopCh, p.done
	p.mu.Unlock()

	p.setStatus(StatusCapturing)
	p.logger.Info("screen capture producer started")

	go p.run(stopCh, done)
}

// Stop signals the loop to exit. Use Wait to join it.
func (p *Producer) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}

	p.mu.Lock()
	close(p.stopCh)
	p.mu.Unlock()

	p.setStatus(StatusStopped)
	p.logger.Info("screen capture producer stopped")
}

// Wait blocks until the capture loop has fully exited, or the timeout
// passes. Returns false on timeout.
func (p *Producer) Wait(timeout time.Duration) bool {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Running reports whether the loop is active.
func (p *Producer) Running() bool {
	return p.running.Load()
}

// run is the producer loop. The stop channel is checked before every
// iteration and during every sleep, so shutdown is prompt.
func (p *Producer) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		p.runIteration(stopCh)

		select {
		case <-stopCh:
			return
		case <-time.After(p.captureInterval()):
		}
	}
}

// runIteration performs one capture cycle. Panics are caught, counted and
// followed by a fixed backoff: an uncaught panic silently killing the
// capture goroutine is the one failure mode this loop must never have.
func (p *Producer) runIteration(stopCh <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			p.errorCount.Add(1)
			p.logger.ErrorWithContext("capture iteration panicked", fmt.Errorf("%v", r),
				map[string]interface{}{"stack": string(debug.Stack())})
			select {
			case <-stopCh:
			case <-time.After(iterationBackoff):
			}
		}
	}()

	frame, err := p.captureAndProcess()
	if err != nil {
		p.errorCount.Add(1)
		p.reportThrottled(err)
		return
	}

	// Keep the buffer close to real time: trim stale frames before the
	// push so at most liveFrameLimit survive.
	for p.channel.Len() >= liveFrameLimit {
		if _, ok := p.channel.TryPop(); !ok {
			break
		}
	}
	p.channel.TryPush(frame)
	p.captureCount.Add(1)
	p.setStatus(StatusCapturing)
	p.bus.Publish(events.NewFrameReadyEvent(frame.Width, frame.Height, frame.CapturedAt))
}

// captureAndProcess performs connectivity checks, the bridge call, decode
// and pre-scaling for one frame.
func (p *Producer) captureAndProcess() (*Frame, error) {
	if !p.bridge.IsConnected() {
		p.setStatus(StatusDisconnected)
		return nil, adb.ErrNotConnected
	}
	if _, ok := p.bridge.CurrentDeviceAddress(); !ok {
		p.setStatus(StatusDisconnected)
		return nil, adb.ErrNotConnected
	}

	raw, err := p.bridge.CaptureRawFrame(captureTimeout)
	if err != nil {
		if errors.Is(err, adb.ErrADBNotFound) || errors.Is(err, adb.ErrNoDeviceFound) {
			p.setStatus(StatusDisconnected)
		}
		return nil, err
	}

	frame, err := DecodeFrame(raw)
	if err != nil {
		return nil, err
	}

	frame.Scaled = GenerateScaledVariants(frame.Image, p.scaleTargets(), p.scaleQuality())
	return frame, nil
}

// scaleTargets returns the fixed common sizes plus the active display size.
func (p *Producer) scaleTargets() []Size {
	p.mu.Lock()
	display := p.displaySize
	p.mu.Unlock()

	targets := make([]Size, 0, len(CommonSizes)+1)
	targets = append(targets, CommonSizes...)
	targets = append(targets, display)
	return targets
}

func (p *Producer) scaleQuality() ScaleQuality {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quality
}

func (p *Producer) captureInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// reportThrottled forwards an error event at most once per cooldown window.
// The window is global across error kinds: a burst of distinct failures
// still collapses to one visible notification. Every error is counted by
// the caller regardless.
func (p *Producer) reportThrottled(err error) {
	p.mu.Lock()
	now := time.Now()
	forward := now.Sub(p.lastErrorAt) > p.cooldown
	if forward {
		p.lastErrorAt = now
	}
	p.mu.Unlock()

	if !forward {
		return
	}

	p.logger.Error("capture failed", err)
	p.bus.Publish(events.NewCaptureErrorEvent("screen_producer", err.Error()))
}

// setStatus publishes a status-changed event when the status actually
// changes.
func (p *Producer) setStatus(status string) {
	p.mu.Lock()
	changed := p.lastStatus != status
	p.lastStatus = status
	p.mu.Unlock()

	if changed {
		p.bus.Publish(events.NewStatusChangedEvent("screen_producer", status))
	}
}

// Status returns the most recently published capture status.
func (p *Producer) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastStatus == "" {
		return StatusStopped
	}
	return p.lastStatus
}

// ProducerStats is a snapshot of the producer counters.
type ProducerStats struct {
	CaptureCount uint64
	ErrorCount   uint64
	Uptime       time.Duration
	CaptureRate  float64
	Running      bool
	Status       string
}

// Statistics returns a snapshot safe to call while the loop runs.
func (p *Producer) Statistics() ProducerStats {
	stats := ProducerStats{
		CaptureCount: p.captureCount.Load(),
		ErrorCount:   p.errorCount.Load(),
		Running:      p.running.Load(),
	}
	p.mu.Lock()
	startedAt := p.startedAt
	stats.Status = p.lastStatus
	p.mu.Unlock()
	if stats.Status == "" {
		stats.Status = StatusStopped
	}
	if !startedAt.IsZero() {
		stats.Uptime = time.Since(startedAt)
		if seconds := stats.Uptime.Seconds(); seconds > 0 {
			stats.CaptureRate = float64(stats.CaptureCount) / seconds
		}
	}
	return stats
}
