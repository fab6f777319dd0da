package adb

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes the capture pipeline cares about.
// Callers match them with errors.Is.
var (
	// ErrADBNotFound means the adb executable is not installed or not on PATH.
	ErrADBNotFound = errors.New("adb executable not found")

	// ErrNoDeviceFound means adb ran but no device/emulator is attached.
	ErrNoDeviceFound = errors.New("no devices/emulators found")

	// ErrNotConnected means no device has been selected via Connect.
	ErrNotConnected = errors.New("device not connected")

	// ErrCaptureTimeout means the screencap invocation exceeded its deadline.
	ErrCaptureTimeout = errors.New("screen capture timed out")

	// ErrEmptyImageData means screencap succeeded but produced no payload.
	ErrEmptyImageData = errors.New("device returned empty image data")
)

// CommandError wraps a non-zero adb exit with whatever it printed to stderr.
type CommandError struct {
	Command string
	Output  string
}

func (e *CommandError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("adb %s failed", e.Command)
	}
	return fmt.Sprintf("adb %s failed: %s", e.Command, e.Output)
}
