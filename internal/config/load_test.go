package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !cfg.Reply.IsEnabled() {
		t.Error("default should be enabled")
	}
	if got := cfg.Reply.DebounceDuration(); got != 5*time.Second {
		t.Errorf("default debounce = %v, want 5s", got)
	}
	if got := cfg.Reply.CooldownDuration(); got != 15*time.Second {
		t.Errorf("default cooldown = %v, want 15s", got)
	}
	if cfg.Gateway.Port != 18650 {
		t.Errorf("default gateway port = %d", cfg.Gateway.Port)
	}
	if cfg.Generator.Provider != "anthropic" {
		t.Errorf("default provider = %q", cfg.Generator.Provider)
	}
}

func TestLoadJSON5File(t *testing.T) {
	path := writeConfig(t, `{
		// auto-reply tuning
		reply: {
			debounce: "2s",
			cooldown: "30s",
			ignore: ["boss@s.whatsapp.net", " spaced@x.net "],
		},
		channels: {
			whatsapp: { enabled: true, bridge_url: "ws://localhost:8066/ws" },
		},
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.Reply.DebounceDuration(); got != 2*time.Second {
		t.Errorf("debounce = %v", got)
	}
	if got := cfg.Reply.CooldownDuration(); got != 30*time.Second {
		t.Errorf("cooldown = %v", got)
	}
	set := cfg.Reply.IgnoreSet()
	if _, ok := set["boss@s.whatsapp.net"]; !ok {
		t.Error("ignore entry missing")
	}
	if _, ok := set["spaced@x.net"]; !ok {
		t.Error("ignore entries should be trimmed")
	}
	if !cfg.Channels.WhatsApp.Enabled || cfg.Channels.WhatsApp.BridgeURL != "ws://localhost:8066/ws" {
		t.Errorf("whatsapp config wrong: %+v", cfg.Channels.WhatsApp)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `{reply: {debounce: "2s"}}`)

	t.Setenv("REPLYGATE_DEBOUNCE", "9s")
	t.Setenv("REPLYGATE_ENABLED", "false")
	t.Setenv("REPLYGATE_IGNORE", "a@x.net, b@x.net")
	t.Setenv("REPLYGATE_GENERATOR_API_KEY", "sk-test")
	t.Setenv("REPLYGATE_TELEGRAM_TOKEN", "12345:token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.Reply.DebounceDuration(); got != 9*time.Second {
		t.Errorf("env debounce should win over file: %v", got)
	}
	if cfg.Reply.IsEnabled() {
		t.Error("REPLYGATE_ENABLED=false not applied")
	}
	if len(cfg.Reply.Ignore) != 2 {
		t.Errorf("ignore list = %v", cfg.Reply.Ignore)
	}
	if cfg.Generator.APIKey != "sk-test" {
		t.Error("generator API key not applied")
	}
	// Channel auto-enables when its credential arrives via env.
	if !cfg.Channels.Telegram.Enabled {
		t.Error("telegram should auto-enable with token")
	}
}

func TestSecretsNeverSerializedFromFile(t *testing.T) {
	// Fields tagged json:"-" must not load from the config file.
	path := writeConfig(t, `{
		generator: { APIKey: "leaked", api_key: "leaked" },
		gateway: { token: "leaked" },
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Generator.APIKey != "" {
		t.Error("generator api key loaded from file")
	}
	if cfg.Gateway.Token != "" {
		t.Error("gateway token loaded from file")
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	rc := ReplyConfig{Debounce: "soon", Cooldown: "-3s"}
	if got := rc.DebounceDuration(); got != 5*time.Second {
		t.Errorf("invalid debounce = %v, want default", got)
	}
	if got := rc.CooldownDuration(); got != 15*time.Second {
		t.Errorf("negative cooldown = %v, want default", got)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}

	if got := ExpandHome("~/x/y.db"); got != filepath.Join(home, "x/y.db") {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %q", got)
	}
}
