package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all runtime settings for the assistant.
type Config struct {
	// Capture
	CaptureInterval     time.Duration // minimum 100ms
	DisplayInterval     time.Duration // consumer tick cadence
	ChannelCapacity     int           // bounded frame channel size
	ErrorReportCooldown time.Duration // minimum gap between forwarded errors
	ScaleQuality        string        // "fast" or "smooth"

	// Display
	DisplayWidth  int
	DisplayHeight int

	// Screenshots
	ScreenshotDir     string
	ScreenshotFormat  string // "PNG" or "JPEG"
	ScreenshotQuality int    // JPEG quality 1-100

	// ADB
	ADBAddress           string
	ADBConnectionTimeout time.Duration
	ADBRetryAttempts     int

	// Logging
	LogLevel string
	LogDir   string
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		CaptureInterval:     1 * time.Second,
		DisplayInterval:     50 * time.Millisecond,
		ChannelCapacity:     5,
		ErrorReportCooldown: 5 * time.Second,
		ScaleQuality:        "fast",

		DisplayWidth:  640,
		DisplayHeight: 640,

		ScreenshotDir:     "data/screenshots",
		ScreenshotFormat:  "PNG",
		ScreenshotQuality: 85,

		ADBAddress:           "127.0.0.1:16384",
		ADBConnectionTimeout: 30 * time.Second,
		ADBRetryAttempts:     3,

		LogLevel: "INFO",
		LogDir:   "data/logs",
	}
}

// Validate clamps out-of-range values instead of failing: a bad settings
// file should degrade to safe defaults, not prevent startup.
func (c *Config) Validate() error {
	if c.CaptureInterval < 100*time.Millisecond {
		c.CaptureInterval = 100 * time.Millisecond
	}
	if c.DisplayInterval <= 0 {
		c.DisplayInterval = 50 * time.Millisecond
	}
	if c.ChannelCapacity < 1 {
		c.ChannelCapacity = 5
	}
	if c.ErrorReportCooldown <= 0 {
		c.ErrorReportCooldown = 5 * time.Second
	}
	if c.ScaleQuality != "fast" && c.ScaleQuality != "smooth" {
		c.ScaleQuality = "fast"
	}
	if c.DisplayWidth <= 0 || c.DisplayHeight <= 0 {
		c.DisplayWidth, c.DisplayHeight = 640, 640
	}
	if c.ScreenshotQuality < 1 || c.ScreenshotQuality > 100 {
		c.ScreenshotQuality = 85
	}

	format := strings.ToUpper(c.ScreenshotFormat)
	if format != "PNG" && format != "JPEG" {
		return fmt.Errorf("unsupported screenshot format: %s", c.ScreenshotFormat)
	}
	c.ScreenshotFormat = format

	return nil
}
