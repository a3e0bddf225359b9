package config

import (
	"strings"
	"time"
)

// Config is the root configuration for the replygate daemon.
type Config struct {
	Reply     ReplyConfig     `json:"reply"`
	Channels  ChannelsConfig  `json:"channels"`
	Generator GeneratorConfig `json:"generator"`
	Gateway   GatewayConfig   `json:"gateway"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// ReplyConfig holds the auto-reply orchestration options.
type ReplyConfig struct {
	Enabled  *bool    `json:"enabled,omitempty"`  // global kill switch, default true (nil = enabled)
	Debounce string   `json:"debounce,omitempty"` // quiet period before replying (default "5s")
	Cooldown string   `json:"cooldown,omitempty"` // minimum gap after a sent reply (default "15s")
	Ignore   []string `json:"ignore,omitempty"`   // partner IDs to never auto-reply to
}

// IsEnabled reports the kill-switch state (default on).
func (r ReplyConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// DebounceDuration parses Debounce with the default applied.
func (r ReplyConfig) DebounceDuration() time.Duration {
	return parseDuration(r.Debounce, 5*time.Second)
}

// CooldownDuration parses Cooldown with the default applied.
func (r ReplyConfig) CooldownDuration() time.Duration {
	return parseDuration(r.Cooldown, 15*time.Second)
}

// IgnoreSet returns the ignore list as a set, entries trimmed.
func (r ReplyConfig) IgnoreSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.Ignore))
	for _, id := range r.Ignore {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ChannelsConfig configures the message channels.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp,omitempty"`
	Telegram TelegramConfig `json:"telegram,omitempty"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
}

// WhatsAppConfig configures the WhatsApp bridge channel.
// The bridge speaks JSON over a WebSocket; SelfJID lets the channel tag
// echoes of the account's own messages.
type WhatsAppConfig struct {
	Enabled   bool   `json:"enabled,omitempty"`
	BridgeURL string `json:"bridge_url,omitempty"` // e.g. "ws://localhost:8066/ws"
	SelfJID   string `json:"self_jid,omitempty"`   // the account's own JID
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Token   string `json:"-"` // from env REPLYGATE_TELEGRAM_TOKEN only
}

// DiscordConfig configures the Discord channel.
type DiscordConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Token   string `json:"-"` // from env REPLYGATE_DISCORD_TOKEN only
}

// GeneratorConfig configures the reply generator (the LLM behind replies).
type GeneratorConfig struct {
	Provider     string  `json:"provider,omitempty"` // "anthropic" (default) or "openai"
	Model        string  `json:"model,omitempty"`
	APIKey       string  `json:"-"` // from env REPLYGATE_GENERATOR_API_KEY only
	BaseURL      string  `json:"base_url,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	OwnerName    string  `json:"owner_name,omitempty"`    // persona: whose account this is
	SystemPrompt string  `json:"system_prompt,omitempty"` // overrides the built-in persona prompt
	HistoryLimit int     `json:"history_limit,omitempty"` // max exchanges kept per session (0 = default)
}

// GatewayConfig configures the ops HTTP server.
type GatewayConfig struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Token string `json:"-"` // webhook auth token, from env REPLYGATE_GATEWAY_TOKEN only
}

// DatabaseConfig configures the dispatch journal backend.
// PostgresDSN is a secret and is read from the environment, never the file.
type DatabaseConfig struct {
	Path        string `json:"path,omitempty"` // sqlite journal path (default "~/.replygate/journal.db")
	PostgresDSN string `json:"-"`              // from env REPLYGATE_POSTGRES_DSN only
}

// TelemetryConfig configures OpenTelemetry trace export. When enabled,
// dispatch spans are exported to an OTLP-compatible backend.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`     // e.g. "localhost:4317"
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // skip TLS (local dev)
	ServiceName string            `json:"service_name,omitempty"` // default "replygate"
	Headers     map[string]string `json:"headers,omitempty"`
}
