package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromINI(t *testing.T) {
	tempDir := t.TempDir()

	settings := `[Capture]
captureIntervalSeconds = 0.5
displayIntervalMs = 100
channelCapacity = 4
scaleQuality = smooth

[Display]
width = 450
height = 800

[Screenshot]
format = JPEG
quality = 70

[ADB]
address = 127.0.0.1:5555
retryAttempts = 5
`
	path := filepath.Join(tempDir, "Settings.ini")
	if err := os.WriteFile(path, []byte(settings), 0644); err != nil {
		t.Fatalf("Failed to write settings file: %v", err)
	}

	config, err := LoadFromINI(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.CaptureInterval != 500*time.Millisecond {
		t.Errorf("Expected 500ms capture interval, got %v", config.CaptureInterval)
	}
	if config.DisplayInterval != 100*time.Millisecond {
		t.Errorf("Expected 100ms display interval, got %v", config.DisplayInterval)
	}
	if config.ChannelCapacity != 4 {
		t.Errorf("Expected channel capacity 4, got %d", config.ChannelCapacity)
	}
	if config.ScaleQuality != "smooth" {
		t.Errorf("Expected smooth quality, got %s", config.ScaleQuality)
	}
	if config.DisplayWidth != 450 || config.DisplayHeight != 800 {
		t.Errorf("Expected 450x800 display, got %dx%d", config.DisplayWidth, config.DisplayHeight)
	}
	if config.ScreenshotFormat != "JPEG" {
		t.Errorf("Expected JPEG format, got %s", config.ScreenshotFormat)
	}
	if config.ADBAddress != "127.0.0.1:5555" {
		t.Errorf("Unexpected ADB address: %s", config.ADBAddress)
	}
	if config.ADBRetryAttempts != 5 {
		t.Errorf("Expected 5 retry attempts, got %d", config.ADBRetryAttempts)
	}

	// Keys absent from the file keep their defaults.
	if config.ErrorReportCooldown != 5*time.Second {
		t.Errorf("Expected default cooldown, got %v", config.ErrorReportCooldown)
	}
	if config.ScreenshotDir != "data/screenshots" {
		t.Errorf("Expected default screenshot dir, got %s", config.ScreenshotDir)
	}
}

func TestLoadFromINIMissingFile(t *testing.T) {
	if _, err := LoadFromINI(filepath.Join(t.TempDir(), "nope.ini")); err == nil {
		t.Error("Expected error for missing settings file")
	}
}

func TestValidateClampsValues(t *testing.T) {
	config := Default()
	config.CaptureInterval = 10 * time.Millisecond
	config.ChannelCapacity = 0
	config.ScaleQuality = "ultra"
	config.ScreenshotQuality = 400

	if err := config.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if config.CaptureInterval != 100*time.Millisecond {
		t.Errorf("Expected interval clamped to 100ms, got %v", config.CaptureInterval)
	}
	if config.ChannelCapacity != 5 {
		t.Errorf("Expected capacity reset to 5, got %d", config.ChannelCapacity)
	}
	if config.ScaleQuality != "fast" {
		t.Errorf("Expected quality reset to fast, got %s", config.ScaleQuality)
	}
	if config.ScreenshotQuality != 85 {
		t.Errorf("Expected quality reset to 85, got %d", config.ScreenshotQuality)
	}
}

func TestValidateRejectsUnknownFormat(t *testing.T) {
	config := Default()
	config.ScreenshotFormat = "BMP"
	if err := config.Validate(); err == nil {
		t.Error("Expected error for unsupported screenshot format")
	}
}
