package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/replygate/replygate/internal/bus"
	"github.com/replygate/replygate/internal/channels"
	"github.com/replygate/replygate/internal/channels/discord"
	"github.com/replygate/replygate/internal/channels/telegram"
	"github.com/replygate/replygate/internal/channels/whatsapp"
	"github.com/replygate/replygate/internal/config"
	"github.com/replygate/replygate/internal/gateway"
	"github.com/replygate/replygate/internal/generator"
	"github.com/replygate/replygate/internal/orchestrator"
	"github.com/replygate/replygate/internal/sessions"
	"github.com/replygate/replygate/internal/store"
	"github.com/replygate/replygate/internal/store/pg"
	"github.com/replygate/replygate/internal/store/sqlite"
	"github.com/replygate/replygate/internal/telemetry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the auto-reply daemon",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Generator.APIKey == "" {
		fmt.Println("No generator API key found. Set REPLYGATE_GENERATOR_API_KEY,")
		fmt.Println("or run the setup wizard:  replygate onboard")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry init failed, continuing without export", "error", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	journal := openJournal(ctx, cfg)
	if journal != nil {
		defer journal.Close()
	}

	provider, err := generator.NewProvider(cfg.Generator)
	if err != nil {
		slog.Error("failed to create reply generator", "error", err)
		os.Exit(1)
	}
	engine := generator.NewEngine(provider, cfg.Generator)

	msgBus := bus.New()
	binder := sessions.NewBinder()

	manager := channels.NewManager()
	registerChannels(manager, cfg, msgBus)

	orch := orchestrator.New(orchestrator.Config{
		Options:   orchestrator.OptionsFromConfig(cfg.Reply),
		Generator: engine,
		Sender:    manager,
		Binder:    binder,
		Journal:   journal,
		Events:    msgBus,
	})

	if err := manager.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
	}

	go consumeInbound(ctx, msgBus, orch)

	// Hot reload: guard/timing option changes apply without restart.
	go func() {
		if err := config.Watch(ctx, cfgPath, func(next *config.Config) {
			orch.SetOptions(orchestrator.OptionsFromConfig(next.Reply))
		}); err != nil {
			slog.Warn("config watch unavailable", "error", err)
		}
	}()

	srv := gateway.NewServer(cfg.Gateway, msgBus, msgBus, orch, manager, journal)
	go func() {
		if err := srv.Start(ctx); err != nil {
			slog.Error("gateway failed", "error", err)
			stop()
		}
	}()

	slog.Info("replygate started",
		"version", Version,
		"debounce", cfg.Reply.DebounceDuration(),
		"cooldown", cfg.Reply.CooldownDuration(),
		"enabled", cfg.Reply.IsEnabled(),
	)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	manager.StopAll(shutdownCtx)
	orch.Close()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown failed", "error", err)
	}

	slog.Info("shutdown complete")
}

// consumeInbound drains the bus into the orchestrator, deduplicating
// webhook retries and bridge reconnect replays by message ID.
func consumeInbound(ctx context.Context, msgBus *bus.MessageBus, orch *orchestrator.Orchestrator) {
	slog.Info("inbound consumer started")

	dedupe := bus.NewDedupeCache(20*time.Minute, 5000)

	for {
		ev, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			slog.Info("inbound consumer stopped")
			return
		}

		if msgID := ev.Metadata["message_id"]; msgID != "" {
			dedupeKey := fmt.Sprintf("%s|%s|%s", ev.Channel, ev.PartnerID, msgID)
			if dedupe.IsDuplicate(dedupeKey) {
				slog.Debug("dedup: skipping duplicate message", "key", dedupeKey)
				continue
			}
		}

		orch.OnInbound(ev)
	}
}

// registerChannels wires every enabled channel adapter into the manager.
func registerChannels(manager *channels.Manager, cfg *config.Config, msgBus *bus.MessageBus) {
	if cfg.Channels.WhatsApp.Enabled {
		ch, err := whatsapp.New(cfg.Channels.WhatsApp, msgBus)
		if err != nil {
			slog.Error("whatsapp channel init failed", "error", err)
		} else {
			manager.Register(ch)
		}
	}

	if cfg.Channels.Telegram.Enabled {
		ch, err := telegram.New(cfg.Channels.Telegram, msgBus)
		if err != nil {
			slog.Error("telegram channel init failed", "error", err)
		} else {
			manager.Register(ch)
		}
	}

	if cfg.Channels.Discord.Enabled {
		ch, err := discord.New(cfg.Channels.Discord, msgBus)
		if err != nil {
			slog.Error("discord channel init failed", "error", err)
		} else {
			manager.Register(ch)
		}
	}
}

// openJournal picks the journal backend: Postgres when a DSN is set,
// otherwise the local sqlite file. A journal failure never blocks replies,
// so errors degrade to running without one.
func openJournal(ctx context.Context, cfg *config.Config) store.Journal {
	if dsn := cfg.Database.PostgresDSN; dsn != "" {
		j, err := pg.Open(ctx, dsn)
		if err != nil {
			slog.Warn("postgres journal unavailable, continuing without journal", "error", err)
			return nil
		}
		slog.Info("dispatch journal: postgres")
		return j
	}

	path := config.ExpandHome(cfg.Database.Path)
	if path == "" {
		return nil
	}
	j, err := sqlite.Open(path)
	if err != nil {
		slog.Warn("sqlite journal unavailable, continuing without journal", "error", err, "path", path)
		return nil
	}
	slog.Info("dispatch journal: sqlite", "path", path)
	return j
}
