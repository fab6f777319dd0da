package config

import (
	"fmt"
	"time"

	"gopkg.in/ini.v1"
)

// LoadFromINI loads configuration from a Settings.ini file. Missing keys
// fall back to the defaults from Default().
func LoadFromINI(path string) (*Config, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	config := Default()

	capture := cfg.Section("Capture")
	config.CaptureInterval = secondsKey(capture, "captureIntervalSeconds", config.CaptureInterval)
	config.DisplayInterval = millisKey(capture, "displayIntervalMs", config.DisplayInterval)
	config.ChannelCapacity = capture.Key("channelCapacity").MustInt(config.ChannelCapacity)
	config.ErrorReportCooldown = secondsKey(capture, "errorReportCooldownSeconds", config.ErrorReportCooldown)
	config.ScaleQuality = capture.Key("scaleQuality").MustString(config.ScaleQuality)

	display := cfg.Section("Display")
	config.DisplayWidth = display.Key("width").MustInt(config.DisplayWidth)
	config.DisplayHeight = display.Key("height").MustInt(config.DisplayHeight)

	screenshot := cfg.Section("Screenshot")
	config.ScreenshotDir = screenshot.Key("directory").MustString(config.ScreenshotDir)
	config.ScreenshotFormat = screenshot.Key("format").MustString(config.ScreenshotFormat)
	config.ScreenshotQuality = screenshot.Key("quality").MustInt(config.ScreenshotQuality)

	adb := cfg.Section("ADB")
	config.ADBAddress = adb.Key("address").MustString(config.ADBAddress)
	config.ADBConnectionTimeout = secondsKey(adb, "connectionTimeoutSeconds", config.ADBConnectionTimeout)
	config.ADBRetryAttempts = adb.Key("retryAttempts").MustInt(config.ADBRetryAttempts)

	logging := cfg.Section("Logging")
	config.LogLevel = logging.Key("level").MustString(config.LogLevel)
	config.LogDir = logging.Key("directory").MustString(config.LogDir)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// secondsKey reads a float seconds value into a duration.
func secondsKey(section *ini.Section, name string, fallback time.Duration) time.Duration {
	seconds := section.Key(name).MustFloat64(fallback.Seconds())
	return time.Duration(seconds * float64(time.Second))
}

// millisKey reads an integer milliseconds value into a duration.
func millisKey(section *ini.Section, name string, fallback time.Duration) time.Duration {
	ms := section.Key(name).MustInt(int(fallback.Milliseconds()))
	return time.Duration(ms) * time.Millisecond
}
