package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/config"
	"github.com/parsascontentcorner/streambot/internal/database"
	"github.com/parsascontentcorner/streambot/pkg/logger"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "streambot",
		Short:        "Chat bot with reminders and live stream announcements",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("env-file", "", "Env file to load before reading the environment (optional).")
	cmd.PersistentFlags().String("webhook-port", "", "Port of the inbound webhook server (overrides WEBHOOK_PORT).")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())

	return cmd
}

// loadConfig reads and validates the configuration, applying flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if port, _ := cmd.Flags().GetString("webhook-port"); port != "" {
		if err := os.Setenv("WEBHOOK_PORT", port); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// openDB connects to the configured database and brings its schema up to date.
func openDB(cfg *config.Config, log *zap.Logger) (*database.DB, error) {
	db, err := database.NewDB(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("running database migrations")
	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	log.Info("database migrations completed successfully")

	return db, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}
