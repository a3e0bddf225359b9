// Package whatsapp connects to a WhatsApp bridge over WebSocket. The bridge
// (whatsmeow or whatsapp-web.js based) speaks the actual WhatsApp protocol;
// this adapter exchanges JSON frames with it.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/replygate/replygate/internal/bus"
	"github.com/replygate/replygate/internal/channels"
	"github.com/replygate/replygate/internal/config"
)

// bridgeFrame is the JSON frame exchanged with the bridge in both directions.
type bridgeFrame struct {
	Type      string `json:"type"`
	From      string `json:"from,omitempty"`
	FromName  string `json:"from_name,omitempty"`
	FromMe    bool   `json:"from_me,omitempty"`
	Chat      string `json:"chat,omitempty"`
	To        string `json:"to,omitempty"`
	Content   string `json:"content,omitempty"`
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Channel is the WhatsApp bridge adapter.
type Channel struct {
	*channels.BaseChannel
	config config.WhatsAppConfig

	mu     sync.Mutex
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a WhatsApp channel from config.
func New(cfg config.WhatsAppConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.BridgeURL == "" {
		return nil, fmt.Errorf("whatsapp bridge_url is required")
	}

	return &Channel{
		BaseChannel: channels.NewBaseChannel("whatsapp", msgBus),
		config:      cfg,
	}, nil
}

// Start connects to the bridge WebSocket and begins listening.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting whatsapp channel", "bridge_url", c.config.BridgeURL)

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		// Don't fail hard, the reconnect loop will keep trying.
		slog.Warn("initial whatsapp bridge connection failed, will retry", "error", err)
	}

	go c.listenLoop()

	c.SetRunning(true)
	return nil
}

// Stop gracefully shuts down the WhatsApp channel.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping whatsapp channel")

	if c.cancel != nil {
		c.cancel()
	}
	c.dropConn()
	c.SetRunning(false)

	return nil
}

// Send delivers reply text to a partner JID via the bridge.
func (c *Channel) Send(_ context.Context, partnerID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("whatsapp bridge not connected")
	}

	data, err := json.Marshal(bridgeFrame{
		Type:    "message",
		To:      partnerID,
		Content: text,
	})
	if err != nil {
		return fmt.Errorf("marshal whatsapp message: %w", err)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}

	return nil
}

// connect establishes the WebSocket connection to the bridge.
func (c *Channel) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.Dial(c.config.BridgeURL, nil)
	if err != nil {
		return fmt.Errorf("dial whatsapp bridge %s: %w", c.config.BridgeURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	slog.Info("whatsapp bridge connected", "url", c.config.BridgeURL)
	return nil
}

// current returns the live connection, or nil while disconnected.
func (c *Channel) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// dropConn closes and forgets the connection so the listen loop redials.
func (c *Channel) dropConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// listenLoop keeps a connection to the bridge alive and pumps its frames.
// Reconnects use exponential backoff capped at 30 seconds.
func (c *Channel) listenLoop() {
	backoff := time.Second

	for c.ctx.Err() == nil {
		conn := c.current()
		if conn == nil {
			slog.Info("attempting whatsapp bridge reconnect", "backoff", backoff)

			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}

			if err := c.connect(); err != nil {
				slog.Warn("whatsapp bridge reconnect failed", "error", err)
				backoff = min(backoff*2, 30*time.Second)
			} else {
				backoff = time.Second
			}
			continue
		}

		c.readFrames(conn)
		c.dropConn()
	}
}

// readFrames pumps frames from one connection until it breaks.
func (c *Channel) readFrames(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				slog.Warn("whatsapp read error, will reconnect", "error", err)
			}
			return
		}

		var frame bridgeFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			slog.Warn("invalid whatsapp bridge frame", "error", err)
			continue
		}

		if frame.Type == "message" {
			c.handleIncoming(frame)
		}
	}
}

// handleIncoming normalizes a bridge frame into an inbound event. The
// partner ID is the chat JID so replies return to the same conversation.
func (c *Channel) handleIncoming(frame bridgeFrame) {
	if frame.From == "" && frame.Chat == "" {
		return
	}

	chatJID := frame.Chat
	if chatJID == "" {
		chatJID = frame.From
	}

	// Group chat JIDs end in "@g.us"; everything else is a direct chat.
	chatKind := bus.ChatDirect
	if strings.HasSuffix(chatJID, "@g.us") {
		chatKind = bus.ChatGroup
	}

	selfSent := frame.FromMe
	if !selfSent && c.config.SelfJID != "" && frame.From == c.config.SelfJID {
		selfSent = true
	}

	receivedAt := parseTimestamp(frame.Timestamp)

	metadata := map[string]string{}
	if frame.ID != "" {
		metadata["message_id"] = frame.ID
	}
	if frame.From != "" {
		metadata["sender_jid"] = frame.From
	}

	slog.Debug("whatsapp message received",
		"chat_jid", chatJID,
		"self_sent", selfSent,
		"preview", channels.Truncate(frame.Content, 50),
	)

	c.HandleMessage(chatJID, frame.FromName, frame.Content, chatKind, selfSent, receivedAt, metadata)
}

// parseTimestamp accepts the bridge's RFC 3339 timestamps and falls back to
// the local receive time on anything else.
func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return time.Now()
}
