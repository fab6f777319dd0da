package adb

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// CaptureRawFrame grabs one PNG-encoded screenshot from the connected device
// via `adb exec-out screencap -p`. Stdout carries the image payload, stderr
// the error channel. Each call spawns its own adb process, so it is safe to
// call concurrently with other device operations.
func (m *Manager) CaptureRawFrame(timeout time.Duration) ([]byte, error) {
	address, ok := m.CurrentDeviceAddress()
	if !ok {
		return nil, ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.path, "-s", address, "exec-out", "screencap", "-p")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, ErrCaptureTimeout
	}
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrADBNotFound
		}
		return nil, classifyCommandError("exec-out screencap", stderr.String())
	}

	if stdout.Len() == 0 {
		return nil, ErrEmptyImageData
	}
	return stdout.Bytes(), nil
}
