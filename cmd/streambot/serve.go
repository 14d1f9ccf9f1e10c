package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/app"
	"github.com/parsascontentcorner/streambot/internal/config"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to chat and run the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				// Sync errors on stdout/stderr are expected for non-syncable descriptors.
				_ = log.Sync()
			}()

			log.Info("starting streambot",
				zap.String("environment", cfg.Server.Env),
				zap.String("webhook_port", cfg.Server.WebhookPort),
				zap.String("database", cfg.Database.Driver),
			)

			specs, err := config.LoadWatchSpecs(cfg.Bot.WatchFile)
			if err != nil {
				return err
			}
			log.Info("watch list loaded", zap.String("file", cfg.Bot.WatchFile), zap.Int("streams", len(specs)))

			db, err := openDB(cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Error("failed to close database connection", zap.Error(err))
				}
			}()

			bot, err := app.New(cfg, specs, db, log)
			if err != nil {
				return fmt.Errorf("failed to build bot: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := bot.Run(ctx); err != nil {
				return err
			}
			log.Info("shut down successfully")
			return nil
		},
	}
}
