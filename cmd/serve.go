package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pot-code/speedread/internal/infrastructure/driver"
	"github.com/pot-code/speedread/internal/infrastructure/notify"
	"github.com/pot-code/speedread/internal/infrastructure/uuid"
	"github.com/pot-code/speedread/internal/interfaces/rest"
	"github.com/pot-code/speedread/internal/progress"
	"github.com/pot-code/speedread/internal/reading"
	"github.com/pot-code/speedread/internal/session"
	"github.com/pot-code/speedread/internal/user"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const closeTimeout = 5 * time.Second

var skipMigrate bool

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the http api",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not create missing tables and indexes on start")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	generator, err := uuid.NewGenerator(cfg.Security.IDKind, cfg.Security.IDLength)
	if err != nil {
		return err
	}
	catalog, err := progress.LoadCatalog(cfg.Engine.AchievementsFile)
	if err != nil {
		return err
	}

	store, err := openStorage(ctx, cfg, generator, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}()
	if !skipMigrate {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	kv := driver.NewRedisClient(cfg.KVStore.Host, cfg.KVStore.Port, cfg.KVStore.Password, cfg.KVStore.DB)
	defer kv.Close()

	hub := notify.NewHub(cfg.CORS.Origins)
	defer hub.Close()

	ProgressUseCase := progress.NewProgressUseCase(
		store.Progress,
		progress.NewAggregator(cfg.Location()),
		catalog,
		cfg.Engine.MaxRetries,
	)
	SessionUseCase := session.NewSessionUseCase(
		store.Sessions,
		ProgressUseCase,
		reading.NewCalculator(cfg.Engine.MaxWPM),
		generator,
		hub,
		cfg.Engine.RejectImplausible,
	)
	UserUseCase := user.NewUserUseCase(store.Users, cfg.Security.MaxLoginAttempts, cfg.Security.RetryTimeout)

	app := rest.NewServer(&rest.ServerOption{
		Config:          cfg,
		Store:           pingFunc(store.Ping),
		KV:              kv,
		UserUseCase:     UserUseCase,
		SessionUseCase:  SessionUseCase,
		ProgressUseCase: ProgressUseCase,
		Hub:             hub,
		Logger:          logger,
	})
	return rest.Serve(ctx, app, fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), logger)
}
