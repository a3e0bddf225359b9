// Package channels provides the adapter layer between external messaging
// platforms (WhatsApp bridge, Telegram, Discord) and the inbound event bus.
// Each adapter normalizes platform messages into bus.InboundEvent and
// delivers generated replies back out.
package channels

import (
	"context"
	"strings"
	"time"

	"github.com/replygate/replygate/internal/bus"
)

// Channel is the interface every platform adapter implements.
type Channel interface {
	// Name returns the channel identifier (e.g. "whatsapp", "telegram").
	Name() string

	// Start begins listening for messages. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// Send delivers reply text to a conversation partner.
	Send(ctx context.Context, partnerID, text string) error

	// IsRunning reports whether the channel is actively processing messages.
	IsRunning() bool
}

// BaseChannel provides the shared plumbing adapters embed.
type BaseChannel struct {
	name    string
	bus     *bus.MessageBus
	running bool
}

// NewBaseChannel creates a BaseChannel bound to the inbound bus.
func NewBaseChannel(name string, msgBus *bus.MessageBus) *BaseChannel {
	return &BaseChannel{name: name, bus: msgBus}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running = running }

// Bus returns the message bus reference.
func (c *BaseChannel) Bus() *bus.MessageBus { return c.bus }

// HandleMessage normalizes a received platform message and publishes it to
// the inbound bus. chatKind is bus.ChatDirect or bus.ChatGroup; selfSent
// marks messages originating from the account's own session.
func (c *BaseChannel) HandleMessage(partnerID, senderName, content string, chatKind string, selfSent bool, receivedAt time.Time, metadata map[string]string) {
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	c.bus.PublishInbound(bus.InboundEvent{
		Channel:    c.name,
		PartnerID:  partnerID,
		ChatKind:   chatKind,
		SelfSent:   selfSent,
		Content:    strings.TrimSpace(content),
		SenderName: senderName,
		ReceivedAt: receivedAt,
		Metadata:   metadata,
	})
}

// Truncate shortens a string to maxLen, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
