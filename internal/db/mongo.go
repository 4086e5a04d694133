package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pockett/agreementflow/internal/config"
)

// MongoDB bundles the connected client and the service database.
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongoDB connects with pooling options from config and verifies the
// connection with a ping.
func NewMongoDB(ctx context.Context, cfg config.MongoConfig) (*MongoDB, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime()).
		SetConnectTimeout(cfg.ConnectTimeout())

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoDB{
		Client:   client,
		Database: client.Database(cfg.DBName),
	}, nil
}

// Close disconnects the underlying client.
func (mdb *MongoDB) Close(ctx context.Context) error {
	return mdb.Client.Disconnect(ctx)
}
