package main

import (
	"context"

	"github.com/pot-code/speedread/internal/infrastructure/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables, collections and indexes of the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			generator, err := uuid.NewGenerator(cfg.Security.IDKind, cfg.Security.IDLength)
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, err := openStorage(ctx, cfg, generator, logger)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			if err := store.Migrate(ctx); err != nil {
				return err
			}
			logger.Info("database migrated", zap.String("db.driver", cfg.Database.Driver))
			return nil
		},
	}
}
