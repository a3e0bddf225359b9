// Package telegram connects to the Telegram Bot API via long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/replygate/replygate/internal/bus"
	"github.com/replygate/replygate/internal/channels"
	"github.com/replygate/replygate/internal/config"
)

// Channel is the Telegram Bot API adapter.
type Channel struct {
	*channels.BaseChannel
	bot        *telego.Bot
	config     config.TelegramConfig
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates a Telegram channel from config.
func New(cfg config.TelegramConfig, msgBus *bus.MessageBus) (*Channel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Channel{
		BaseChannel: channels.NewBaseChannel("telegram", msgBus),
		bot:         bot,
		config:      cfg,
	}, nil
}

// Start begins long polling for Telegram updates.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting telegram channel (polling mode)")

	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	c.SetRunning(true)
	slog.Info("telegram bot connected", "username", c.bot.Username())

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				if update.Message != nil {
					c.handleMessage(update.Message)
				}
			}
		}
	}()

	return nil
}

// Stop cancels long polling and waits for the polling goroutine to exit so
// Telegram releases the getUpdates lock before a new instance starts.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping telegram channel")
	c.SetRunning(false)

	if c.pollCancel != nil {
		c.pollCancel()
	}

	if c.pollDone != nil {
		select {
		case <-c.pollDone:
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}

	return nil
}

// Send delivers reply text to a Telegram chat.
func (c *Channel) Send(ctx context.Context, partnerID, text string) error {
	chatID, err := strconv.ParseInt(partnerID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", partnerID, err)
	}

	if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// handleMessage normalizes a Telegram message into an inbound event.
// Bots never receive their own outbound messages over getUpdates, so
// self-sent detection is left to the guard's other clauses.
func (c *Channel) handleMessage(msg *telego.Message) {
	chatKind := bus.ChatDirect
	if msg.Chat.Type == telego.ChatTypeGroup || msg.Chat.Type == telego.ChatTypeSupergroup {
		chatKind = bus.ChatGroup
	}

	senderName := ""
	if msg.From != nil {
		senderName = msg.From.FirstName
		if msg.From.Username != "" {
			senderName = msg.From.Username
		}
	}

	partnerID := strconv.FormatInt(msg.Chat.ID, 10)

	slog.Debug("telegram message received",
		"chat_id", partnerID,
		"preview", channels.Truncate(msg.Text, 50),
	)

	c.HandleMessage(partnerID, senderName, msg.Text, chatKind, false, time.Unix(msg.Date, 0), map[string]string{
		"message_id": strconv.Itoa(msg.MessageID),
	})
}
