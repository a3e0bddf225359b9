// Package bus is the in-process message bus between channels and the
// orchestrator. Channels publish inbound events; a single consumer loop
// drains them. A separate subscriber registry fans out server-side events
// to WebSocket clients.
package bus

import (
	"context"
	"log/slog"
	"sync"
)

const inboundBuffer = 256

// MessageBus routes inbound events and broadcasts server events.
// Safe for concurrent use.
type MessageBus struct {
	inbound chan InboundEvent

	mu          sync.RWMutex
	subscribers map[string]EventHandler
}

// New creates a MessageBus with a buffered inbound queue.
func New() *MessageBus {
	return &MessageBus{
		inbound:     make(chan InboundEvent, inboundBuffer),
		subscribers: make(map[string]EventHandler),
	}
}

// PublishInbound enqueues an inbound event. If the queue is full the event
// is dropped with a warning instead of blocking the channel's read loop.
func (b *MessageBus) PublishInbound(ev InboundEvent) {
	select {
	case b.inbound <- ev:
	default:
		slog.Warn("inbound queue full, dropping event",
			"channel", ev.Channel, "partner_id", ev.PartnerID)
	}
}

// ConsumeInbound blocks until an event is available or ctx is done.
// The second return is false when the context was cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundEvent, bool) {
	select {
	case <-ctx.Done():
		return InboundEvent{}, false
	case ev := <-b.inbound:
		return ev, true
	}
}

// Subscribe registers an event handler under an id. Re-subscribing with the
// same id replaces the previous handler.
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = handler
}

// Unsubscribe removes a handler.
func (b *MessageBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Broadcast delivers an event to all subscribers. Handlers run on the
// caller's goroutine and must not block.
func (b *MessageBus) Broadcast(event Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.subscribers))
	for _, h := range b.subscribers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
