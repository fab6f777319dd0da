package events

import (
	"image"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	// Capture pipeline events
	EventTypeFrameReady      EventType = "capture.frame_ready"
	EventTypeDisplayUpdate   EventType = "capture.display_update"
	EventTypeCaptureError    EventType = "capture.error"
	EventTypeStatusChanged   EventType = "capture.status_changed"
	EventTypeScreenshotSaved EventType = "capture.screenshot_saved"

	// Device events
	EventTypeDeviceConnected    EventType = "device.connected"
	EventTypeDeviceDisconnected EventType = "device.disconnected"

	// Automation events
	EventTypeAutomationStateChanged EventType = "automation.state_changed"

	// Generic error event
	EventTypeError EventType = "error"
)

// Event represents a system event with metadata
type Event struct {
	Type      EventType              // Type of event
	Source    string                 // Component that emitted the event
	Timestamp time.Time              // When the event occurred
	Data      map[string]interface{} // Event-specific data
}

// EventHandler is a function that processes an event
type EventHandler func(Event)

// SubscriptionID uniquely identifies a subscription
type SubscriptionID int64

// EventBus defines the interface for event pub/sub
type EventBus interface {
	// Subscribe registers a handler for a specific event type
	Subscribe(eventType EventType, handler EventHandler) SubscriptionID

	// Unsubscribe removes a subscription by ID
	Unsubscribe(id SubscriptionID)

	// Publish sends an event to all subscribers (blocking until queued)
	Publish(event Event)

	// Stop stops the event bus and drains remaining events
	Stop()
}

// Helper functions to create common events

// NewFrameReadyEvent signals that the producer decoded a new frame.
func NewFrameReadyEvent(width, height int, capturedAt time.Time) Event {
	return Event{
		Type:      EventTypeFrameReady,
		Source:    "screen_producer",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"width":       width,
			"height":      height,
			"captured_at": capturedAt,
		},
	}
}

// NewDisplayUpdateEvent carries a display-ready image toward the GUI layer.
// Handlers run off the interface thread and must redispatch themselves.
func NewDisplayUpdateEvent(img image.Image) Event {
	return Event{
		Type:      EventTypeDisplayUpdate,
		Source:    "screen_consumer",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"image": img,
		},
	}
}

// NewCaptureErrorEvent creates a throttled capture error notification.
func NewCaptureErrorEvent(source, message string) Event {
	return Event{
		Type:      EventTypeCaptureError,
		Source:    source,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"message": message,
		},
	}
}

// NewStatusChangedEvent creates a capture status change event.
func NewStatusChangedEvent(source, status string) Event {
	return Event{
		Type:      EventTypeStatusChanged,
		Source:    source,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"status": status,
		},
	}
}

// NewScreenshotSavedEvent creates a screenshot saved event.
func NewScreenshotSavedEvent(path string) Event {
	return Event{
		Type:      EventTypeScreenshotSaved,
		Source:    "screen_capture",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"path": path,
		},
	}
}

// NewDeviceConnectedEvent creates a device connected event.
func NewDeviceConnectedEvent(address, model string) Event {
	return Event{
		Type:      EventTypeDeviceConnected,
		Source:    "adb_manager",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"address": address,
			"model":   model,
		},
	}
}

// NewDeviceDisconnectedEvent creates a device disconnected event.
func NewDeviceDisconnectedEvent(address string) Event {
	return Event{
		Type:      EventTypeDeviceDisconnected,
		Source:    "adb_manager",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"address": address,
		},
	}
}

// NewAutomationStateChangedEvent creates an automation state transition event.
func NewAutomationStateChangedEvent(name, from, to string) Event {
	return Event{
		Type:      EventTypeAutomationStateChanged,
		Source:    "automation",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"name": name,
			"from": from,
			"to":   to,
		},
	}
}

// NewErrorEvent creates a generic error event.
func NewErrorEvent(source, component string, err error) Event {
	return Event{
		Type:      EventTypeError,
		Source:    source,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"component": component,
			"error":     err.Error(),
		},
	}
}
