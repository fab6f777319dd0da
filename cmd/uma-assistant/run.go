package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/cobra"

	"github.com/uma-tools/uma-assistant/internal/adb"
	"github.com/uma-tools/uma-assistant/internal/capture"
	"github.com/uma-tools/uma-assistant/internal/events"
	"github.com/uma-tools/uma-assistant/internal/logging"
)

var (
	runCmd = &cli.Command{
		Use:   "run",
		Short: "Connect to the emulator and mirror its screen until interrupted",
		RunE:  Run,
	}
)

func init() {
	rootCmd.AddCommand(runCmd)
}

func Run(cmd *cli.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.NewLogger("main")
	logger.SetMinLevel(logging.ParseLevel(cfg.LogLevel))

	manager, err := adb.NewManager(
		adb.WithConnectionTimeout(cfg.ADBConnectionTimeout),
		adb.WithRetryAttempts(cfg.ADBRetryAttempts),
	)
	if err != nil {
		return fmt.Errorf("adb is not available: %w", err)
	}

	if err := manager.StartServer(); err != nil {
		logger.Warn("adb server did not start cleanly, continuing")
	}
	if err := manager.Connect(cfg.ADBAddress); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.ADBAddress, err)
	}
	defer manager.Disconnect()

	bus := events.NewBus(1000)
	defer bus.Stop()

	eventLogger, err := logging.NewEventLogger(bus, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer eventLogger.Close()

	device, _ := manager.CurrentDevice()
	bus.Publish(events.NewDeviceConnectedEvent(cfg.ADBAddress, device.Model))

	pipeline := capture.NewPipeline(manager, bus, capture.Options{
		ChannelCapacity:   cfg.ChannelCapacity,
		DisplaySize:       capture.Size{Width: cfg.DisplayWidth, Height: cfg.DisplayHeight},
		ScaleQuality:      capture.ScaleQuality(cfg.ScaleQuality),
		ErrorCooldown:     cfg.ErrorReportCooldown,
		ScreenshotDir:     cfg.ScreenshotDir,
		ScreenshotFormat:  cfg.ScreenshotFormat,
		ScreenshotQuality: cfg.ScreenshotQuality,
	})
	defer pipeline.Cleanup()

	pipeline.Start(cfg.CaptureInterval, cfg.DisplayInterval)
	logger.InfoWithContext("mirroring started", map[string]interface{}{
		"device":           cfg.ADBAddress,
		"capture_interval": cfg.CaptureInterval,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	statsTicker := time.NewTicker(10 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-statsTicker.C:
			stats := pipeline.Statistics()
			logger.InfoWithContext("pipeline statistics", map[string]interface{}{
				"captures":      stats.Producer.CaptureCount,
				"errors":        stats.Producer.ErrorCount,
				"displays":      stats.Consumer.DisplayCount,
				"channel_depth": stats.ChannelDepth,
				"dropped":       stats.Dropped,
				"status":        stats.Producer.Status,
			})
		case sig := <-sigCh:
			logger.InfoWithContext("shutting down", map[string]interface{}{"signal": sig.String()})
			bus.Publish(events.NewDeviceDisconnectedEvent(cfg.ADBAddress))
			return nil
		}
	}
}
