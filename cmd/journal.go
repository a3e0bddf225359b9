package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/replygate/replygate/internal/config"
	"github.com/replygate/replygate/internal/store"
	"github.com/replygate/replygate/internal/store/pg"
	"github.com/replygate/replygate/internal/store/sqlite"
)

func journalCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent dispatch journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			var journal store.Journal
			if dsn := cfg.Database.PostgresDSN; dsn != "" {
				journal, err = pg.Open(ctx, dsn)
			} else {
				journal, err = sqlite.Open(config.ExpandHome(cfg.Database.Path))
			}
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer journal.Close()

			records, err := journal.Recent(ctx, limit)
			if err != nil {
				return fmt.Errorf("query journal: %w", err)
			}

			if len(records) == 0 {
				fmt.Println("journal is empty")
				return nil
			}

			for _, rec := range records {
				line := fmt.Sprintf("%s  %-18s %s/%s  batch=%d  %dms",
					rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					rec.Status,
					rec.Channel,
					rec.PartnerID,
					rec.BatchSize,
					rec.LatencyMs,
				)
				if rec.Error != "" {
					line += "  error: " + rec.Error
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}
