package adb

import (
	"fmt"
	"strings"
	"time"
)

// defaultShellTimeout bounds input/app-control commands, which should all
// return quickly on a healthy device.
const defaultShellTimeout = 30 * time.Second

// Shell executes a shell command on the connected device and returns its
// trimmed output.
func (m *Manager) Shell(command string) (string, error) {
	return m.ShellWithTimeout(command, defaultShellTimeout)
}

// ShellWithTimeout executes a shell command bounded by an explicit timeout.
func (m *Manager) ShellWithTimeout(command string, timeout time.Duration) (string, error) {
	address, ok := m.CurrentDeviceAddress()
	if !ok {
		return "", ErrNotConnected
	}
	return m.run(timeout, "-s", address, "shell", command)
}

// Tap performs a tap at the given screen coordinates.
func (m *Manager) Tap(x, y int) error {
	_, err := m.Shell(fmt.Sprintf("input tap %d %d", x, y))
	return err
}

// Swipe performs a swipe gesture. Duration is in milliseconds.
func (m *Manager) Swipe(x1, y1, x2, y2, durationMs int) error {
	_, err := m.Shell(fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, durationMs))
	return err
}

// SendKey sends a key event such as "KEYCODE_BACK".
func (m *Manager) SendKey(key string) error {
	_, err := m.Shell(fmt.Sprintf("input keyevent %s", key))
	return err
}

// InputText types text on the device. Spaces must be encoded as %s for the
// input binary.
func (m *Manager) InputText(text string) error {
	escaped := strings.ReplaceAll(text, " ", "%s")
	_, err := m.Shell(fmt.Sprintf("input text %s", escaped))
	return err
}

// StartApp launches an activity.
func (m *Manager) StartApp(packageName, activity string) error {
	_, err := m.Shell(fmt.Sprintf("am start -n %s/%s", packageName, activity))
	return err
}

// ForceStop stops an application.
func (m *Manager) ForceStop(packageName string) error {
	_, err := m.Shell(fmt.Sprintf("am force-stop %s", packageName))
	return err
}

// IsAppRunning checks whether a package has a live process.
func (m *Manager) IsAppRunning(packageName string) (bool, error) {
	out, err := m.Shell(fmt.Sprintf("pidof %s", packageName))
	if err != nil {
		// pidof exits non-zero when the process does not exist.
		return false, nil
	}
	return strings.TrimSpace(out) != "", nil
}

// WindowSize returns the device screen size as reported by `wm size`.
func (m *Manager) WindowSize() (width, height int, err error) {
	out, err := m.Shell("wm size")
	if err != nil {
		return 0, 0, err
	}
	return parseWindowSize(out)
}

// parseWindowSize handles both the physical and override output formats.
func parseWindowSize(out string) (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(out, "Physical size: %dx%d", &w, &h); err == nil {
		return w, h, nil
	}
	if _, err := fmt.Sscanf(out, "Override size: %dx%d", &w, &h); err == nil {
		return w, h, nil
	}
	return 0, 0, fmt.Errorf("failed to parse window size: %q", out)
}
