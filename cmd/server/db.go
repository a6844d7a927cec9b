package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/cartify/internal/config"
	"github.com/Skotchmaster/cartify/internal/repo"
	"github.com/Skotchmaster/cartify/internal/seed"
	"github.com/Skotchmaster/cartify/pkg/db"
	"github.com/Skotchmaster/cartify/pkg/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(cmd.Context(), func(cfg config.Config, log *slog.Logger, r *repo.GormRepo) error {
			if err := r.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("schema migrated", "driver", cfg.DatabaseDriver)
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert sample products and accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(cmd.Context(), func(cfg config.Config, log *slog.Logger, r *repo.GormRepo) error {
			if err := r.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			res, err := seed.Run(cmd.Context(), r, cfg.SeedAdminPassword)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			log.Info("database seeded", "users", res.Users, "products", res.Products)
			return nil
		})
	},
}

func withRepo(ctx context.Context, fn func(config.Config, *slog.Logger, *repo.GormRepo) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)

	gdb, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			log.Warn("db close error", "error", err)
		}
	}()

	return fn(cfg, log, repo.New(gdb))
}
