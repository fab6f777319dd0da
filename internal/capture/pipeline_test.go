package capture

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/uma-tools/uma-assistant/internal/adb"
	"github.com/uma-tools/uma-assistant/internal/events"
)

func newTestPipeline(t *testing.T, bridge Bridge, bus events.EventBus) *Pipeline {
	t.Helper()
	opts := DefaultOptions()
	opts.ScreenshotDir = t.TempDir()
	return NewPipeline(bridge, bus, opts)
}

func TestPipelineStartStop(t *testing.T) {
	bus := events.NewBus(200)
	defer bus.Stop()

	bridge := &fakeBridge{connected: true, payload: testPNG(t, 50, 50)}
	pipeline := newTestPipeline(t, bridge, bus)

	pipeline.Start(100*time.Millisecond, 10*time.Millisecond)
	if !pipeline.Running() {
		t.Fatal("Pipeline should be running after Start")
	}

	// Idempotent start.
	pipeline.Start(100*time.Millisecond, 10*time.Millisecond)

	ok := waitUntil(t, 2*time.Second, func() bool {
		return pipeline.Statistics().Producer.CaptureCount >= 1
	})
	if !ok {
		t.Fatal("Producer never captured a frame")
	}

	pipeline.Stop()
	if pipeline.Running() {
		t.Error("Pipeline should not be running after Stop")
	}

	// No pushes after Stop returns.
	depth := pipeline.Statistics().ChannelDepth
	time.Sleep(250 * time.Millisecond)
	if got := pipeline.Statistics().ChannelDepth; got != depth {
		t.Errorf("Channel depth changed after stop: %d -> %d", depth, got)
	}

	// Stopping twice is safe.
	pipeline.Stop()
}

func TestPipelineCleanupWithoutStart(t *testing.T) {
	bus := events.NewBus(10)
	defer bus.Stop()

	pipeline := newTestPipeline(t, &fakeBridge{}, bus)
	pipeline.Cleanup() // must not panic or block
}

func TestPipelineCaptureOnce(t *testing.T) {
	bus := events.NewBus(200)
	defer bus.Stop()

	bridge := &fakeBridge{connected: true, payload: testPNG(t, 50, 50)}
	pipeline := newTestPipeline(t, bridge, bus)

	// CaptureOnce is independent of the running loop.
	pipeline.Start(100*time.Millisecond, 10*time.Millisecond)
	defer pipeline.Stop()

	frame, err := pipeline.CaptureOnce()
	if err != nil {
		t.Fatalf("CaptureOnce failed: %v", err)
	}
	if frame.Width != 50 || frame.Height != 50 {
		t.Errorf("Expected 50x50 frame, got %dx%d", frame.Width, frame.Height)
	}
	if len(frame.Scaled) != 0 {
		t.Error("Immediate captures carry no pre-scaled variants")
	}
}

func TestPipelineCaptureOnceDisconnected(t *testing.T) {
	bus := events.NewBus(10)
	defer bus.Stop()

	pipeline := newTestPipeline(t, &fakeBridge{connected: false}, bus)
	if _, err := pipeline.CaptureOnce(); err == nil {
		t.Error("Expected error when device is not connected")
	}
}

func TestPipelineSaveScreenshot(t *testing.T) {
	bus := events.NewBus(100)
	defer bus.Stop()
	recorder := newEventRecorder(bus, events.EventTypeScreenshotSaved)

	bridge := &fakeBridge{connected: true, payload: testPNG(t, 50, 50)}
	opts := DefaultOptions()
	opts.ScreenshotDir = t.TempDir()
	pipeline := NewPipeline(bridge, bus, opts)

	path, err := pipeline.SaveScreenshot()
	if err != nil {
		t.Fatalf("SaveScreenshot failed: %v", err)
	}

	pattern := regexp.MustCompile(`^screenshot_\d{8}_\d{6}\.png$`)
	if !pattern.MatchString(filepath.Base(path)) {
		t.Errorf("Unexpected screenshot filename: %s", filepath.Base(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Screenshot file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Screenshot file is empty")
	}

	ok := waitUntil(t, 2*time.Second, func() bool {
		return recorder.count(events.EventTypeScreenshotSaved) == 1
	})
	if !ok {
		t.Error("Screenshot saved event was never published")
	}
}

func TestPipelineSaveScreenshotJPEG(t *testing.T) {
	bus := events.NewBus(100)
	defer bus.Stop()

	bridge := &fakeBridge{connected: true, payload: testPNG(t, 50, 50)}
	opts := DefaultOptions()
	opts.ScreenshotDir = t.TempDir()
	opts.ScreenshotFormat = "JPEG"
	opts.ScreenshotQuality = 70
	pipeline := NewPipeline(bridge, bus, opts)

	path, err := pipeline.SaveScreenshot()
	if err != nil {
		t.Fatalf("SaveScreenshot failed: %v", err)
	}
	if filepath.Ext(path) != ".jpeg" {
		t.Errorf("Expected .jpeg extension, got %s", path)
	}
}

func TestPipelineSetDisplaySize(t *testing.T) {
	bus := events.NewBus(200)
	defer bus.Stop()
	display := newDisplayRecorder(bus)

	bridge := &fakeBridge{connected: true, payload: testPNG(t, 200, 400)}
	pipeline := newTestPipeline(t, bridge, bus)
	pipeline.SetDisplaySize(Size{Width: 100, Height: 100})

	pipeline.Start(100*time.Millisecond, 10*time.Millisecond)
	defer pipeline.Stop()

	ok := waitUntil(t, 3*time.Second, func() bool {
		return len(display.images()) >= 1
	})
	if !ok {
		t.Fatal("No display update arrived")
	}

	bounds := display.images()[0].Bounds()
	if bounds.Dx() > 100 || bounds.Dy() > 100 {
		t.Errorf("Display image exceeds configured size: %dx%d", bounds.Dx(), bounds.Dy())
	}
}

// blockingBridge parks every capture call until released, simulating a
// stuck device during shutdown.
type blockingBridge struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingBridge) IsConnected() bool { return true }

func (b *blockingBridge) CurrentDeviceAddress() (string, bool) {
	return "127.0.0.1:16384", true
}

func (b *blockingBridge) CaptureRawFrame(timeout time.Duration) ([]byte, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return nil, adb.ErrCaptureTimeout
}

func TestPipelineStatsResponsiveDuringStop(t *testing.T) {
	bus := events.NewBus(100)
	defer bus.Stop()

	bridge := &blockingBridge{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	pipeline := newTestPipeline(t, bridge, bus)
	pipeline.Start(100*time.Millisecond, 10*time.Millisecond)

	select {
	case <-bridge.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Producer never reached the bridge call")
	}

	stopDone := make(chan struct{})
	go func() {
		pipeline.Stop()
		close(stopDone)
	}()

	// While Stop is joining the stuck producer, stats calls must return
	// promptly instead of queueing behind the join.
	statsDone := make(chan struct{})
	go func() {
		pipeline.Statistics()
		pipeline.Running()
		close(statsDone)
	}()

	select {
	case <-statsDone:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Statistics blocked while Stop was joining the producer")
	}

	close(bridge.release)
	select {
	case <-stopDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop never returned after the bridge was released")
	}
	if pipeline.Running() {
		t.Error("Pipeline should not be running after Stop")
	}
}

func TestPipelineStatisticsMerge(t *testing.T) {
	bus := events.NewBus(200)
	defer bus.Stop()

	bridge := &fakeBridge{connected: true, payload: testPNG(t, 50, 50)}
	pipeline := newTestPipeline(t, bridge, bus)

	pipeline.Start(100*time.Millisecond, 10*time.Millisecond)
	waitUntil(t, 2*time.Second, func() bool {
		stats := pipeline.Statistics()
		return stats.Producer.CaptureCount >= 1 && stats.Consumer.DisplayCount >= 1
	})
	pipeline.Stop()

	stats := pipeline.Statistics()
	if stats.Producer.CaptureCount < 1 {
		t.Error("Producer counter missing from merged stats")
	}
	if stats.Consumer.DisplayCount < 1 {
		t.Error("Consumer counter missing from merged stats")
	}
	if stats.Running {
		t.Error("Merged stats should report not running after stop")
	}
}
