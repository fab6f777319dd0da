package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/uma-tools/uma-assistant/internal/logging"
)

// DefaultAddress is the ADB address of the first MuMu emulator instance.
const DefaultAddress = "127.0.0.1:16384"

// DeviceInfo describes one entry from `adb devices -l`.
type DeviceInfo struct {
	Address string
	Status  string
	Model   string
}

// Ready reports whether the device is attached and usable.
func (d DeviceInfo) Ready() bool {
	return d.Status == "device"
}

// Manager owns the connection to a single Android device or emulator. All
// device access goes through the adb executable; each call is an independent
// process invocation, so concurrent calls from different goroutines are safe.
type Manager struct {
	path    string
	logger  *logging.Logger
	timeout time.Duration
	retries int

	mu        sync.Mutex
	connected *DeviceInfo
}

// Option configures a Manager.
type Option func(*Manager)

// WithConnectionTimeout bounds each adb server/connect invocation.
func WithConnectionTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithRetryAttempts sets how many times Connect retries before giving up.
func WithRetryAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.retries = n
		}
	}
}

// NewManager locates the adb executable and returns a manager for it.
func NewManager(opts ...Option) (*Manager, error) {
	path, err := exec.LookPath("adb")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrADBNotFound, err)
	}

	m := &Manager{
		path:    path,
		logger:  logging.NewLogger("adb_manager"),
		timeout: 30 * time.Second,
		retries: 3,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// StartServer starts the adb server if it is not already running.
func (m *Manager) StartServer() error {
	if _, err := m.run(m.timeout, "start-server"); err != nil {
		return fmt.Errorf("failed to start adb server: %w", err)
	}
	m.logger.Info("adb server started")
	return nil
}

// KillServer terminates the adb server.
func (m *Manager) KillServer() error {
	if _, err := m.run(m.timeout, "kill-server"); err != nil {
		return fmt.Errorf("failed to kill adb server: %w", err)
	}
	m.logger.Info("adb server stopped")
	return nil
}

// Devices lists all devices known to the adb server.
func (m *Manager) Devices() ([]DeviceInfo, error) {
	out, err := m.run(m.timeout, "devices", "-l")
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return parseDevices(out), nil
}

// parseDevices parses `adb devices -l` output. The first line is a header.
func parseDevices(out string) []DeviceInfo {
	var devices []DeviceInfo

	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if i == 0 || line == "" {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		info := DeviceInfo{Address: parts[0], Status: parts[1]}
		for _, part := range parts[2:] {
			if strings.HasPrefix(part, "model:") {
				info.Model = strings.TrimPrefix(part, "model:")
				break
			}
		}
		devices = append(devices, info)
	}

	return devices
}

// Connect attaches to the device at address, retrying a few times since
// emulators can take a moment to accept connections. An empty address falls
// back to DefaultAddress.
func (m *Manager) Connect(address string) error {
	if address == "" {
		address = DefaultAddress
	}

	var lastErr error
	for attempt := 1; attempt <= m.retries; attempt++ {
		// Network addresses need an explicit adb connect first.
		if strings.Contains(address, ":") && !strings.HasPrefix(address, "emulator-") {
			if _, err := m.run(m.timeout, "connect", address); err != nil {
				lastErr = err
				m.logger.WarnWithContext("adb connect attempt failed", map[string]interface{}{
					"address": address,
					"attempt": attempt,
				})
				time.Sleep(2 * time.Second)
				continue
			}
		}

		devices, err := m.Devices()
		if err != nil {
			lastErr = err
			continue
		}

		for _, device := range devices {
			if device.Address == address && device.Ready() {
				m.mu.Lock()
				m.connected = &device
				m.mu.Unlock()
				m.logger.InfoWithContext("connected to device", map[string]interface{}{
					"address": address,
					"model":   device.Model,
				})
				return nil
			}
		}

		lastErr = fmt.Errorf("device %s not ready", address)
		if attempt < m.retries {
			time.Sleep(2 * time.Second)
		}
	}

	return fmt.Errorf("failed to connect to %s after %d attempts: %w", address, m.retries, lastErr)
}

// Disconnect detaches from the current device.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	device := m.connected
	m.connected = nil
	m.mu.Unlock()

	if device == nil {
		return nil
	}

	if _, err := m.run(m.timeout, "disconnect", device.Address); err != nil {
		return fmt.Errorf("failed to disconnect from %s: %w", device.Address, err)
	}
	m.logger.InfoWithContext("disconnected from device", map[string]interface{}{"address": device.Address})
	return nil
}

// IsConnected re-checks with the adb server that the selected device is
// still attached and ready.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	device := m.connected
	m.mu.Unlock()

	if device == nil {
		return false
	}

	devices, err := m.Devices()
	if err != nil {
		return false
	}
	for _, d := range devices {
		if d.Address == device.Address && d.Ready() {
			return true
		}
	}
	return false
}

// CurrentDevice returns the device selected by Connect, if any.
func (m *Manager) CurrentDevice() (DeviceInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected == nil {
		return DeviceInfo{}, false
	}
	return *m.connected, true
}

// CurrentDeviceAddress returns the address of the selected device, if any.
func (m *Manager) CurrentDeviceAddress() (string, bool) {
	device, ok := m.CurrentDevice()
	if !ok {
		return "", false
	}
	return device.Address, true
}

// run executes an adb command bounded by timeout and returns trimmed stdout.
func (m *Manager) run(timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("adb %s: %w", args[0], context.DeadlineExceeded)
	}
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrADBNotFound
		}
		return "", classifyCommandError(args[0], stderr.String())
	}

	return strings.TrimSpace(stdout.String()), nil
}

// classifyCommandError maps well-known adb stderr text to sentinel errors.
func classifyCommandError(command, stderr string) error {
	msg := strings.TrimSpace(stderr)
	if strings.Contains(msg, "no devices/emulators found") {
		return ErrNoDeviceFound
	}
	return &CommandError{Command: command, Output: msg}
}
