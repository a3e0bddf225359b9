package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/replygate/replygate/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactive setup wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnboard()
		},
	}
}

func runOnboard() error {
	cfg := config.Default()

	var (
		ownerName       string
		provider        = "anthropic"
		debounce        = "5s"
		cooldown        = "15s"
		ignoreRaw       string
		enabledChannels []string
		bridgeURL       string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Whose account is this?").
				Description("Used in the reply persona, e.g. \"Duc\"").
				Value(&ownerName),
			huh.NewSelect[string]().
				Title("Reply generator provider").
				Options(
					huh.NewOption("Anthropic", "anthropic"),
					huh.NewOption("OpenAI", "openai"),
				).
				Value(&provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Debounce window").
				Description("Quiet period before replying to a message burst").
				Value(&debounce),
			huh.NewInput().
				Title("Cooldown").
				Description("Minimum gap after each sent reply").
				Value(&cooldown),
			huh.NewInput().
				Title("Ignored partners").
				Description("Comma-separated IDs to never auto-reply to (optional)").
				Value(&ignoreRaw),
		),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Channels").
				Options(
					huh.NewOption("WhatsApp (bridge)", "whatsapp"),
					huh.NewOption("Telegram", "telegram"),
					huh.NewOption("Discord", "discord"),
				).
				Value(&enabledChannels),
			huh.NewInput().
				Title("WhatsApp bridge URL").
				Description("WebSocket URL of the bridge, e.g. ws://localhost:8066/ws (leave empty if unused)").
				Value(&bridgeURL),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("onboard cancelled: %w", err)
	}

	cfg.Generator.Provider = provider
	cfg.Generator.OwnerName = strings.TrimSpace(ownerName)
	cfg.Reply.Debounce = debounce
	cfg.Reply.Cooldown = cooldown
	for _, id := range strings.Split(ignoreRaw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.Reply.Ignore = append(cfg.Reply.Ignore, id)
		}
	}
	for _, ch := range enabledChannels {
		switch ch {
		case "whatsapp":
			cfg.Channels.WhatsApp.Enabled = true
			cfg.Channels.WhatsApp.BridgeURL = strings.TrimSpace(bridgeURL)
		case "telegram":
			cfg.Channels.Telegram.Enabled = true
		case "discord":
			cfg.Channels.Discord.Enabled = true
		}
	}

	cfgPath := resolveConfigPath()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Config written to %s\n\n", cfgPath)
	fmt.Println("Secrets are read from the environment, never the config file:")
	fmt.Println("  REPLYGATE_GENERATOR_API_KEY  (required)")
	if cfg.Channels.Telegram.Enabled {
		fmt.Println("  REPLYGATE_TELEGRAM_TOKEN")
	}
	if cfg.Channels.Discord.Enabled {
		fmt.Println("  REPLYGATE_DISCORD_TOKEN")
	}
	fmt.Println("\nThen start the daemon:  replygate serve")
	return nil
}
