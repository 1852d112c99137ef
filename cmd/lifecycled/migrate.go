package main

import (
	"context"
	"fmt"
	"time"

	"auction-lifecycle/internal/config"
	"auction-lifecycle/internal/infrastructure/mysql"
	"auction-lifecycle/internal/infrastructure/postgres"
	"auction-lifecycle/pkg/logger"
	"auction-lifecycle/pkg/utils"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the listing tables for the configured store driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := logger.NewWithLevel(cfg.Log.Level)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			switch cfg.Store.Driver {
			case config.DriverPostgres:
				pool, err := utils.OpenPostgres(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
				if err != nil {
					return err
				}
				defer pool.Close()
				err = postgres.Migrate(ctx, pool)
				if err != nil {
					return err
				}
			default:
				db, err := utils.OpenMySQL(ctx, utils.MySQLPoolOptions{
					DSN:             cfg.MySQL.DSN,
					MaxOpenConns:    cfg.MySQL.MaxOpenConns,
					MaxIdleConns:    cfg.MySQL.MaxIdleConns,
					ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
				})
				if err != nil {
					return err
				}
				defer db.Close()
				if err := mysql.Migrate(ctx, db); err != nil {
					return err
				}
			}

			log.Info("Schema migrated", "driver", cfg.Store.Driver)
			return nil
		},
	}
}
