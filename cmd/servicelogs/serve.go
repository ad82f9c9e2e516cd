package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/akave-ai/servicelogs/internal/config"
	"github.com/akave-ai/servicelogs/internal/database"
	"github.com/akave-ai/servicelogs/internal/logger"
	"github.com/akave-ai/servicelogs/internal/server"
	"github.com/akave-ai/servicelogs/internal/service"
)

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply storage migrations before serving")
	return cmd
}

func serve(parent context.Context, migrate bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nrApp, err := logger.NewRelic(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("new relic disabled")
	}
	if nrApp != nil {
		defer nrApp.Shutdown(5 * time.Second)
	}

	db, err := database.New(ctx, cfg.Database, log)
	if err != nil {
		log.Error().Err(err).Msg("could not connect to database")
		return fmt.Errorf("database: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	if migrate {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	logs := service.NewLogService(db.Logs(), log, time.Duration(cfg.Server.RequestTimeout)*time.Second)
	srv := server.New(cfg, logs, log, nrApp)
	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("server exited")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
