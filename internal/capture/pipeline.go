package capture

import (
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/uma-tools/uma-assistant/internal/adb"
	"github.com/uma-tools/uma-assistant/internal/events"
	"github.com/uma-tools/uma-assistant/internal/logging"
)

// stopJoinTimeout bounds how long Stop waits for the producer goroutine.
const stopJoinTimeout = 3 * time.Second

// Options configures a Pipeline.
type Options struct {
	ChannelCapacity   int
	DisplaySize       Size
	ScaleQuality      ScaleQuality
	ErrorCooldown     time.Duration
	ScreenshotDir     string
	ScreenshotFormat  string // "PNG" or "JPEG"
	ScreenshotQuality int    // JPEG quality
}

// DefaultOptions mirrors the application's built-in settings.
func DefaultOptions() Options {
	return Options{
		ChannelCapacity:   5,
		DisplaySize:       Size{Width: 640, Height: 640},
		ScaleQuality:      ScaleFast,
		ErrorCooldown:     DefaultErrorCooldown,
		ScreenshotDir:     "data/screenshots",
		ScreenshotFormat:  "PNG",
		ScreenshotQuality: 85,
	}
}

// PipelineStats merges producer, consumer and channel statistics.
type PipelineStats struct {
	Producer     ProducerStats
	Consumer     ConsumerStats
	ChannelDepth int
	Dropped      uint64
	Running      bool
}

// Pipeline composes the producer, the bounded frame channel and the display
// consumer, and is the only object the interface layer talks to.
type Pipeline struct {
	bridge   Bridge
	bus      events.EventBus
	logger   *logging.Logger
	channel  *FrameChannel
	producer *Producer
	consumer *Consumer
	opts     Options

	mu      sync.Mutex
	running bool
}

// NewPipeline builds a pipeline around the given bridge. The pipeline owns
// its frame channel for its entire life; producer and consumer only begin
// executing on Start.
func NewPipeline(bridge Bridge, bus events.EventBus, opts Options) *Pipeline {
	if opts.ChannelCapacity < 1 {
		opts.ChannelCapacity = 5
	}
	if opts.DisplaySize.Width <= 0 || opts.DisplaySize.Height <= 0 {
		opts.DisplaySize = Size{Width: 640, Height: 640}
	}
	if opts.ErrorCooldown <= 0 {
		opts.ErrorCooldown = DefaultErrorCooldown
	}
	if opts.ScreenshotFormat == "" {
		opts.ScreenshotFormat = "PNG"
	}
	if opts.ScreenshotQuality <= 0 {
		opts.ScreenshotQuality = 85
	}
	if opts.ScaleQuality == "" {
		opts.ScaleQuality = ScaleFast
	}

	channel := NewFrameChannel(opts.ChannelCapacity)

	producer := NewProducer(bridge, channel, bus)
	producer.SetDisplaySize(opts.DisplaySize)
	producer.SetScaleQuality(opts.ScaleQuality)
	producer.SetErrorCooldown(opts.ErrorCooldown)

	consumer := NewConsumer(channel, bus)
	consumer.SetDisplaySize(opts.DisplaySize)
	consumer.SetScaleQuality(opts.ScaleQuality)

	return &Pipeline{
		bridge:   bridge,
		bus:      bus,
		logger:   logging.NewLogger("screen_capture"),
		channel:  channel,
		producer: producer,
		consumer: consumer,
		opts:     opts,
	}
}

// Start configures and launches producer then consumer. Idempotent: calling
// Start while running is a logged no-op.
func (p *Pipeline) Start(captureInterval, displayInterval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.logger.Warn("capture pipeline already running")
		return
	}

	p.producer.SetCaptureInterval(captureInterval)
	p.producer.Start()
	p.consumer.Start(displayInterval)
	p.running = true

	p.logger.InfoWithContext("capture pipeline started", map[string]interface{}{
		"capture_interval": captureInterval,
		"display_interval": displayInterval,
	})
}

// Stop halts the consumer tick and the producer loop, then waits (bounded)
// for the producer goroutine to fully exit. After Stop returns no further
// frames are pushed. The mutex only guards the flag flip so Running and
// Statistics stay responsive during the join.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.consumer.Stop()
	p.producer.Stop()
	if !p.producer.Wait(stopJoinTimeout) {
		// Best-effort join: a stuck bridge call can outlive the stop
		// signal by up to its own timeout.
		p.logger.Warn("producer did not exit within join timeout")
	}

	p.logger.Info("capture pipeline stopped")
}

// Running reports whether the pipeline has been started.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// SetDisplaySize reconfigures the active display size at runtime. The
// producer pre-scales to it and the consumer selects it from the next tick.
func (p *Pipeline) SetDisplaySize(size Size) {
	p.producer.SetDisplaySize(size)
	p.consumer.SetDisplaySize(size)
}

// Statistics merges producer and consumer counters. Safe to call
// concurrently with a running pipeline.
func (p *Pipeline) Statistics() PipelineStats {
	return PipelineStats{
		Producer:     p.producer.Statistics(),
		Consumer:     p.consumer.Statistics(),
		ChannelDepth: p.channel.Len(),
		Dropped:      p.channel.Dropped(),
		Running:      p.Running(),
	}
}

// CaptureOnce performs a single synchronous capture bypassing the channel.
// It is a fully independent call path to the bridge and neither pauses nor
// is blocked by the background loop. The returned frame carries no
// pre-scaled variants.
func (p *Pipeline) CaptureOnce() (*Frame, error) {
	if !p.bridge.IsConnected() {
		return nil, adb.ErrNotConnected
	}

	raw, err := p.bridge.CaptureRawFrame(captureTimeout)
	if err != nil {
		return nil, fmt.Errorf("immediate capture failed: %w", err)
	}

	return DecodeFrame(raw)
}

// SaveScreenshot captures one frame synchronously and writes it under the
// configured directory as screenshot_<YYYYMMDD_HHMMSS>.<format>. Errors are
// returned and also emitted as error events so the interface layer can show
// them without a call-site check.
func (p *Pipeline) SaveScreenshot() (string, error) {
	frame, err := p.CaptureOnce()
	if err != nil {
		p.bus.Publish(events.NewCaptureErrorEvent("screen_capture", err.Error()))
		return "", err
	}

	if err := os.MkdirAll(p.opts.ScreenshotDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	format := strings.ToUpper(p.opts.ScreenshotFormat)
	filename := fmt.Sprintf("screenshot_%s.%s", time.Now().Format("20060102_150405"), strings.ToLower(format))
	path := filepath.Join(p.opts.ScreenshotDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create screenshot file: %w", err)
	}
	defer file.Close()

	switch format {
	case "PNG":
		err = png.Encode(file, frame.Image)
	case "JPEG":
		err = jpeg.Encode(file, frame.Image, &jpeg.Options{Quality: p.opts.ScreenshotQuality})
	default:
		err = errors.New("unsupported screenshot format: " + format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode screenshot: %w", err)
	}

	p.logger.InfoWithContext("screenshot saved", map[string]interface{}{"path": path})
	p.bus.Publish(events.NewScreenshotSavedEvent(path))
	return path, nil
}

// Cleanup is equivalent to Stop and is safe to call even if the pipeline
// was never started. Used at process shutdown.
func (p *Pipeline) Cleanup() {
	p.Stop()
	p.logger.Info("capture pipeline cleaned up")
}
