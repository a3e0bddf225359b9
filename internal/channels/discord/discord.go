// Package discord connects to the Discord gateway via discordgo.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/replygate/replygate/internal/bus"
	"github.com/replygate/replygate/internal/channels"
	"github.com/replygate/replygate/internal/config"
)

// Channel is the Discord gateway adapter. Partner IDs are Discord channel
// IDs so DM replies land in the same DM channel.
type Channel struct {
	*channels.BaseChannel
	session   *discordgo.Session
	config    config.DiscordConfig
	botUserID string // populated on start
}

// New creates a Discord channel from config.
func New(cfg config.DiscordConfig, msgBus *bus.MessageBus) (*Channel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &Channel{
		BaseChannel: channels.NewBaseChannel("discord", msgBus),
		session:     session,
		config:      cfg,
	}, nil
}

// Start opens the Discord gateway connection and begins receiving events.
func (c *Channel) Start(_ context.Context) error {
	slog.Info("starting discord channel")

	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	c.botUserID = user.ID

	c.SetRunning(true)
	slog.Info("discord bot connected", "username", user.Username, "id", user.ID)

	return nil
}

// Stop closes the Discord gateway connection.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping discord channel")
	c.SetRunning(false)
	return c.session.Close()
}

// Send delivers reply text to a Discord channel, splitting into multiple
// messages past Discord's 2000-char limit.
func (c *Channel) Send(_ context.Context, partnerID, text string) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}

	const maxLen = 2000

	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			// Break at a newline when one falls in the second half.
			cutAt := maxLen
			if idx := strings.LastIndexByte(text[:maxLen], '\n'); idx > maxLen/2 {
				cutAt = idx + 1
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}

		if _, err := c.session.ChannelMessageSend(partnerID, chunk); err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
	}

	return nil
}

// handleMessage normalizes an incoming Discord message into an inbound
// event. Messages from the account's own session are tagged self-sent so
// the guard can drop them; other bots are dropped outright.
func (c *Channel) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	selfSent := m.Author.ID == c.botUserID
	if m.Author.Bot && !selfSent {
		return
	}

	chatKind := bus.ChatDirect
	if m.GuildID != "" {
		chatKind = bus.ChatGroup
	}

	content := m.Content
	for _, att := range m.Attachments {
		if content != "" {
			content += "\n"
		}
		content += fmt.Sprintf("[attachment: %s]", att.URL)
	}

	slog.Debug("discord message received",
		"channel_id", m.ChannelID,
		"self_sent", selfSent,
		"preview", channels.Truncate(content, 50),
	)

	receivedAt := m.Timestamp
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	c.HandleMessage(m.ChannelID, resolveDisplayName(m), content, chatKind, selfSent, receivedAt, map[string]string{
		"message_id": m.ID,
		"user_id":    m.Author.ID,
		"guild_id":   m.GuildID,
	})
}

// resolveDisplayName returns the best available display name for an author.
// Priority: server nickname > global display name > username.
func resolveDisplayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
