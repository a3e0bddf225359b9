package bus

import (
	"context"
	"time"
)

// Chat kind constants for InboundEvent.ChatKind.
const (
	ChatDirect = "direct"
	ChatGroup  = "group"
)

// InboundEvent is one incoming-message notification from a channel
// (WhatsApp bridge, Telegram, Discord, or the webhook endpoint).
type InboundEvent struct {
	Channel    string            `json:"channel"`
	PartnerID  string            `json:"partner_id"`            // stable identity of the conversation partner
	ChatKind   string            `json:"chat_kind"`             // "direct" or "group"
	SelfSent   bool              `json:"self_sent,omitempty"`   // true when the account's own message echoes back
	Content    string            `json:"content"`
	SenderName string            `json:"sender_name,omitempty"` // display name, falls back to PartnerID
	ReceivedAt time.Time         `json:"received_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OutboundReply is a generated reply to be delivered by a channel.
type OutboundReply struct {
	Channel   string `json:"channel"`
	PartnerID string `json:"partner_id"`
	Content   string `json:"content"`
}

// Event is a server-side event broadcast to WebSocket subscribers.
type Event struct {
	Name    string      `json:"name"` // e.g. "reply.queued", "reply.dispatched", "reply.failed", "event.rejected"
	Payload interface{} `json:"payload,omitempty"`
}

// EventHandler handles a broadcast event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription.
// Used by the orchestrator and the gateway server to decouple from MessageBus.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}

// InboundSource abstracts the inbound side of the bus for the consumer loop.
type InboundSource interface {
	PublishInbound(ev InboundEvent)
	ConsumeInbound(ctx context.Context) (InboundEvent, bool)
}
