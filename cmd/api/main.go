package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/sandeepkv93/ai-saas-backend/internal/config"
	"github.com/sandeepkv93/ai-saas-backend/internal/database"
	"github.com/sandeepkv93/ai-saas-backend/internal/di"
	"github.com/sandeepkv93/ai-saas-backend/internal/observability"
	"github.com/sandeepkv93/ai-saas-backend/internal/tools/common"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:          "api",
		Short:        "AI SaaS backend API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return common.LoadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional KEY=VALUE file merged into the environment")
	root.AddCommand(newServeCommand(), newMigrateCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			lp, err := observability.InitLogs(ctx, cfg)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(os.Stdout, cfg.LogLevel, lp)
			slog.SetDefault(logger)

			a, err := di.InitializeApp(ctx, cfg, logger, lp)
			if err != nil {
				logger.Error("app init failed", "error", err.Error())
				return err
			}
			return a.Run(ctx)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Manage database migrations"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: withDB(func(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
				return database.Migrate(ctx, db, cfg.DatabaseDriver, slog.Default())
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: withDB(func(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
				return database.Rollback(ctx, db, cfg.DatabaseDriver)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			RunE: withDB(func(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
				states, err := database.Status(ctx, db, cfg.DatabaseDriver)
				if err != nil {
					return err
				}
				for _, st := range states {
					mark := "pending"
					if st.Applied {
						mark = "applied"
					}
					fmt.Printf("%05d  %-8s %s\n", st.Version, mark, st.Path)
				}
				return nil
			}),
		},
	)
	return cmd
}

func withDB(fn func(context.Context, *config.Config, *gorm.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		slog.SetDefault(observability.NewLogger(os.Stderr, cfg.LogLevel, nil))
		db, err := database.Open(cfg)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		return fn(cmd.Context(), cfg, db)
	}
}
