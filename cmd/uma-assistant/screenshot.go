package main

import (
	"fmt"

	cli "github.com/spf13/cobra"

	"github.com/uma-tools/uma-assistant/internal/adb"
	"github.com/uma-tools/uma-assistant/internal/capture"
	"github.com/uma-tools/uma-assistant/internal/events"
)

var (
	screenshotCmd = &cli.Command{
		Use:   "screenshot",
		Short: "Capture a single frame and save it to the screenshot directory",
		RunE:  Screenshot,
	}
)

func init() {
	rootCmd.AddCommand(screenshotCmd)
}

func Screenshot(cmd *cli.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	manager, err := adb.NewManager(
		adb.WithConnectionTimeout(cfg.ADBConnectionTimeout),
		adb.WithRetryAttempts(cfg.ADBRetryAttempts),
	)
	if err != nil {
		return fmt.Errorf("adb is not available: %w", err)
	}

	if err := manager.Connect(cfg.ADBAddress); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.ADBAddress, err)
	}
	defer manager.Disconnect()

	bus := events.NewBus(100)
	defer bus.Stop()

	pipeline := capture.NewPipeline(manager, bus, capture.Options{
		ScreenshotDir:     cfg.ScreenshotDir,
		ScreenshotFormat:  cfg.ScreenshotFormat,
		ScreenshotQuality: cfg.ScreenshotQuality,
	})

	path, err := pipeline.SaveScreenshot()
	if err != nil {
		return err
	}

	fmt.Println(path)
	return nil
}
