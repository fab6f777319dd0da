package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/uma-tools/uma-assistant/internal/events"
)

// EventLogger subscribes to the event bus and appends every event to a
// timestamped log file, so a session can be reviewed after the GUI is gone.
type EventLogger struct {
	logger        *Logger
	eventBus      events.EventBus
	subscriptions []events.SubscriptionID
	logFile       *os.File
}

// NewEventLogger creates an event logger writing under logDir.
func NewEventLogger(eventBus events.EventBus, logDir string) (*EventLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("events_%s.log", timestamp))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := NewLogger("event_logger")
	logger.AddOutput(logFile)

	el := &EventLogger{
		logger:   logger,
		eventBus: eventBus,
		logFile:  logFile,
	}
	el.subscribeToEvents()

	return el, nil
}

// subscribeToEvents registers the handler for every event type the
// pipeline emits. Display updates are skipped: logging an image per
// consumer tick would be pure noise.
func (el *EventLogger) subscribeToEvents() {
	eventTypes := []events.EventType{
		events.EventTypeFrameReady,
		events.EventTypeCaptureError,
		events.EventTypeStatusChanged,
		events.EventTypeScreenshotSaved,
		events.EventTypeDeviceConnected,
		events.EventTypeDeviceDisconnected,
		events.EventTypeAutomationStateChanged,
		events.EventTypeError,
	}

	for _, eventType := range eventTypes {
		id := el.eventBus.Subscribe(eventType, el.handleEvent)
		el.subscriptions = append(el.subscriptions, id)
	}
}

// handleEvent writes one event as a log line.
func (el *EventLogger) handleEvent(event events.Event) {
	context := map[string]interface{}{"source": event.Source}
	for k, v := range event.Data {
		context[k] = v
	}

	switch event.Type {
	case events.EventTypeCaptureError, events.EventTypeError:
		el.logger.ErrorWithContext(string(event.Type), nil, context)
	default:
		el.logger.InfoWithContext(string(event.Type), context)
	}
}

// Close unsubscribes from the bus and closes the log file.
func (el *EventLogger) Close() error {
	for _, id := range el.subscriptions {
		el.eventBus.Unsubscribe(id)
	}
	return el.logFile.Close()
}
