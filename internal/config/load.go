package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Reply: ReplyConfig{
			Debounce: "5s",
			Cooldown: "15s",
		},
		Generator: GeneratorConfig{
			Provider:    "anthropic",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18650,
		},
		Database: DatabaseConfig{
			Path: "~/.replygate/journal.db",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error; defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values; secrets exist only here.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("REPLYGATE_GENERATOR_API_KEY", &c.Generator.APIKey)
	envStr("REPLYGATE_GENERATOR_MODEL", &c.Generator.Model)
	envStr("REPLYGATE_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	envStr("REPLYGATE_DISCORD_TOKEN", &c.Channels.Discord.Token)
	envStr("REPLYGATE_GATEWAY_TOKEN", &c.Gateway.Token)
	envStr("REPLYGATE_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("REPLYGATE_BRIDGE_URL", &c.Channels.WhatsApp.BridgeURL)
	envStr("REPLYGATE_DEBOUNCE", &c.Reply.Debounce)
	envStr("REPLYGATE_COOLDOWN", &c.Reply.Cooldown)

	if v := os.Getenv("REPLYGATE_ENABLED"); v != "" {
		enabled := strings.EqualFold(v, "true") || v == "1"
		c.Reply.Enabled = &enabled
	}
	if v := os.Getenv("REPLYGATE_IGNORE"); v != "" {
		var ids []string
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		c.Reply.Ignore = ids
	}

	// Auto-enable channels when credentials arrive via env.
	if c.Channels.Telegram.Token != "" {
		c.Channels.Telegram.Enabled = true
	}
	if c.Channels.Discord.Token != "" {
		c.Channels.Discord.Enabled = true
	}
	if c.Channels.WhatsApp.BridgeURL != "" {
		c.Channels.WhatsApp.Enabled = true
	}
}

// ExpandHome expands a leading "~/" to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
