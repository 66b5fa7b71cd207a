package main

import (
	"context"
	"fmt"

	infra "github.com/pot-code/speedread/internal/infrastructure"
	"github.com/pot-code/speedread/internal/infrastructure/driver"
	"github.com/pot-code/speedread/internal/infrastructure/logging"
	"github.com/pot-code/speedread/internal/infrastructure/uuid"
	"github.com/pot-code/speedread/internal/progress"
	"github.com/pot-code/speedread/internal/session"
	"github.com/pot-code/speedread/internal/user"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type migrator interface {
	Migrate(ctx context.Context) error
}

// storage repositories of the configured database driver
type storage struct {
	Ping     func(ctx context.Context) error
	Close    func(ctx context.Context) error
	Users    user.UserRepository
	Sessions session.SessionRepository
	Progress progress.ProgressRepository

	migrators []migrator
}

// Migrate creates tables/collections and indexes, safe to run repeatedly
func (s *storage) Migrate(ctx context.Context) error {
	for _, m := range s.migrators {
		if err := m.Migrate(ctx); err != nil {
			return err
		}
	}
	return nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// bootstrap loads the config of cmd and creates the logger
func bootstrap(cmd *cobra.Command) (*infra.AppConfig, *zap.Logger, error) {
	cfg, err := infra.LoadConfig(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(&logging.Config{
		FilePath: cfg.Logging.FilePath,
		Level:    cfg.Logging.Level,
		AppID:    cfg.AppID,
		Env:      cfg.Env,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func openStorage(ctx context.Context, cfg *infra.AppConfig, generator uuid.Generator, logger *zap.Logger) (*storage, error) {
	db := cfg.Database
	ctx = logging.SetLoggerInContext(ctx, logger)

	if db.Driver == "mongo" {
		conn, err := driver.NewMongoDB(ctx, &driver.MongoConfig{
			URI:      db.URI,
			Host:     db.Host,
			Port:     db.Port,
			User:     db.User,
			Password: db.Password,
			Database: db.Schema,
			MaxConn:  uint64(db.MaxConn),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		logger.Debug("Create mongo connection instance", zap.String("db.schema", db.Schema), zap.String("db.host", db.Host))

		users := user.NewUserMongo(conn, generator)
		sessions := session.NewSessionMongo(conn)
		progresses := progress.NewProgressMongo(conn)
		return &storage{
			Ping:      conn.Ping,
			Close:     conn.Close,
			Users:     users,
			Sessions:  sessions,
			Progress:  progresses,
			migrators: []migrator{users, sessions, progresses},
		}, nil
	}

	conn, err := driver.GetDBConnection(&driver.DBConfig{
		Driver:   db.Driver,
		Host:     db.Host,
		MaxConn:  db.MaxConn,
		Password: db.Password,
		Port:     db.Port,
		Protocol: db.Protocol,
		Query:    db.Query,
		Schema:   db.Schema,
		User:     db.User,
		Path:     db.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DB connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	logger.Debug("Create sql connection instance", zap.String("db.driver", db.Driver),
		zap.String("db.schema", db.Schema),
		zap.String("db.host", db.Host),
	)

	users := user.NewUserSQL(conn, generator)
	sessions := session.NewSessionSQL(conn)
	progresses := progress.NewProgressSQL(conn)
	return &storage{
		Ping:      conn.Ping,
		Close:     conn.Close,
		Users:     users,
		Sessions:  sessions,
		Progress:  progresses,
		migrators: []migrator{users, sessions, progresses},
	}, nil
}
