// Package main is the entry point for the cleanup quest bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"cleanup-quest-bot/internal/bot"
	"cleanup-quest-bot/internal/config"
	"cleanup-quest-bot/internal/pkg/db"
	"cleanup-quest-bot/internal/pkg/lock"
	"cleanup-quest-bot/internal/repository"
	"cleanup-quest-bot/internal/service"
	"cleanup-quest-bot/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "cleanupbot",
	Short: "Community cleanup bot",
	Long: `cleanupbot runs a Telegram bot where neighbours report dirty spots with a photo,
volunteers accept and clean them, and reporters validate the result. Every step
earns points, levels, daily streaks and mission rewards.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config", "directory holding config.yaml")
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(leaderboardCmd())
	rootCmd.AddCommand(ticketsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setupLogger configures the global zerolog logger.
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// app holds what every subcommand needs.
type app struct {
	cfg      *config.Config
	pool     *db.Pool
	store    service.Store
	settings service.Settings
}

// withApp loads config, sets up logging and opens the database for fn.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogger(cfg.Log.Level)
	log.Debug().Msg("Configuration loaded successfully")

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, &app{
		cfg:      cfg,
		pool:     pool,
		store:    service.NewPostgresStore(repository.NewStore(pool.Pool)),
		settings: service.SettingsFromConfig(cfg),
	})
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.pool.Migrate(ctx); err != nil {
					return err
				}
				log.Info().Msg("All migrations completed successfully")
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return withApp(ctx, func(ctx context.Context, a *app) error {
				if err := a.pool.Migrate(ctx); err != nil {
					return fmt.Errorf("failed to run database migrations: %w", err)
				}
				health, err := a.pool.HealthCheck(ctx)
				if err != nil {
					return err
				}
				if !health.Ready() {
					return fmt.Errorf("schema incomplete after migration, missing %v", health.MissingTables)
				}
				log.Info().Dur("latency", health.Latency).Msg("Database ready")

				photos := storage.NewPhotoStore(a.cfg.Storage)

				telegramBot, err := bot.New(&bot.Dependencies{
					Config:         a.cfg,
					Settings:       a.settings,
					TicketService:  service.NewTicketService(a.store, photos, a.settings),
					MissionService: service.NewMissionService(a.store, a.settings),
					ProfileService: service.NewProfileService(a.store, a.settings),
					RankingService: service.NewRankingService(a.store, a.settings),
					Photos:         photos,
					TicketLock:     lock.New[string](),
				})
				if err != nil {
					return err
				}

				go telegramBot.Start()

				<-ctx.Done()
				log.Info().Msg("Received shutdown signal")
				telegramBot.Stop()
				log.Info().Msg("Bot stopped gracefully")
				return nil
			})
		},
	}
}
