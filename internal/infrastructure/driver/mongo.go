package driver

import (
	"context"
	"fmt"

	"github.com/pot-code/speedread/internal/infrastructure/logging"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// MongoConfig connection options, URI wins over host/port when set
type MongoConfig struct {
	URI      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	MaxConn  uint64
}

// MongoDB document store handle bound to one database
type MongoDB struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDB connects and pings the server
func NewMongoDB(ctx context.Context, cfg *MongoConfig) (*MongoDB, error) {
	uri := cfg.URI
	if uri == "" {
		uri = fmt.Sprintf("mongodb://%s:%d", cfg.Host, cfg.Port)
	}
	opts := options.Client().
		ApplyURI(uri).
		SetMonitor(newCommandMonitor())
	if cfg.MaxConn > 0 {
		opts.SetMaxPoolSize(cfg.MaxConn)
	}
	if cfg.User != "" {
		opts.SetAuth(options.Credential{
			Username: cfg.User,
			Password: cfg.Password,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return &MongoDB{client: client, db: client.Database(cfg.Database)}, nil
}

// Collection .
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.db.Collection(name)
}

// Ping .
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close .
func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// newCommandMonitor logs commands with the logger bound to the operation context
func newCommandMonitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Succeeded: func(ctx context.Context, evt *event.CommandSucceededEvent) {
			logging.ExtractLoggerFromContext(ctx).Debug("",
				zap.String("db.method", evt.CommandName),
				zap.Duration("db.time", evt.Duration),
				zap.Int64("db.request_id", evt.RequestID),
			)
		},
		Failed: func(ctx context.Context, evt *event.CommandFailedEvent) {
			if ctx.Err() != nil {
				return
			}
			logging.ExtractLoggerFromContext(ctx).Error(evt.Failure,
				zap.String("db.method", evt.CommandName),
				zap.Duration("db.time", evt.Duration),
				zap.Int64("db.request_id", evt.RequestID),
			)
		},
	}
}
