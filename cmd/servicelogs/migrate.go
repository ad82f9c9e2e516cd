package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/akave-ai/servicelogs/internal/config"
	"github.com/akave-ai/servicelogs/internal/database"
	"github.com/akave-ai/servicelogs/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the logs table or collection indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			log := logger.New(cfg)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			db, err := database.New(ctx, cfg.Database, log)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = db.Close(closeCtx)
			}()
			return db.Migrate(ctx)
		},
	}
}
