package events

import (
	"fmt"
	"sync"
	"time"
)

// subscription represents a single event subscription
type subscription struct {
	id      SubscriptionID
	handler EventHandler
}

// Bus is the default implementation of EventBus. Events are queued on a
// buffered channel and dispatched from a single goroutine; handlers run in
// their own goroutines so a slow subscriber never stalls a publisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]subscription
	nextSubID   SubscriptionID

	eventQueue chan Event
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewBus creates a new event bus with the specified queue size.
func NewBus(bufferSize int) *Bus {
	bus := &Bus{
		subscribers: make(map[EventType][]subscription),
		nextSubID:   1,
		eventQueue:  make(chan Event, bufferSize),
		stopCh:      make(chan struct{}),
	}

	bus.wg.Add(1)
	go bus.processEvents()

	return bus
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler EventHandler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSubID
	b.nextSubID++

	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{
		id:      id,
		handler: handler,
	})

	return id
}

// Unsubscribe removes a subscription by ID
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		for i, sub := range subs {
			if sub.id == id {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish sends an event to all subscribers (blocking until queued)
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventQueue <- event:
	case <-b.stopCh:
		fmt.Printf("[EventBus] Dropped event (bus stopped): %v\n", event.Type)
	}
}

// Stop stops the event bus and drains remaining events
func (b *Bus) Stop() {
	close(b.stopCh)
	b.wg.Wait()
}

// QueueDepth returns the current number of queued events.
func (b *Bus) QueueDepth() int {
	return len(b.eventQueue)
}

// processEvents runs in a goroutine and dispatches events to handlers
func (b *Bus) processEvents() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.eventQueue:
			b.dispatch(event)

		case <-b.stopCh:
			// Drain remaining events before stopping
			for {
				select {
				case event := <-b.eventQueue:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

// dispatch sends an event to all registered handlers
func (b *Bus) dispatch(event Event) {
	b.mu.RLock()
	subs := b.subscribers[event.Type]
	handlers := make([]EventHandler, len(subs))
	for i, sub := range subs {
		handlers[i] = sub.handler
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		go b.safeHandlerCall(handler, event)
	}
}

// safeHandlerCall calls a handler with panic recovery
func (b *Bus) safeHandlerCall(handler EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[EventBus] Handler panic for event %v: %v\n", event.Type, r)
		}
	}()

	handler(event)
}
