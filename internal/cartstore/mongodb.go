package cartstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const appName = "redclaw-storefront"

// ConnectMongoDB returns the cart database with its indexes in place.
// The caller owns the client behind it and disconnects it on shutdown.
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetAppName(appName).
		SetConnectTimeout(10*time.Second).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(50))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	db := client.Database(database)
	if err := bootstrap(ctx, client, db); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}
	return db, nil
}

func bootstrap(ctx context.Context, client *mongo.Client, db *mongo.Database) error {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping MongoDB: %w", err)
	}
	if err := NewMongoRepository(db).CreateIndexes(ctx); err != nil {
		return fmt.Errorf("create cart indexes: %w", err)
	}
	return nil
}
