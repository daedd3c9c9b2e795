package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.uber.org/zap"

	"mds-backend/internal/logger"
)

// Collection names of the store of record.
const (
	DevicesCollection   = "devices"
	EventsCollection    = "events"
	TelemetryCollection = "telemetry"
)

// ConnectMongo establishes a connection to MongoDB. The database named in the URI wins
// over defaultDB.
func ConnectMongo(mongoURI, defaultDB string) (*mongo.Database, error) {
	cs, err := connstring.ParseAndValidate(mongoURI)
	if err != nil {
		return nil, fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = Disconnect(client)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := cs.Database
	if dbName == "" {
		dbName = defaultDB
	}
	logger.Info("Connected to MongoDB", zap.String("database", dbName))

	db := client.Database(dbName)
	if err := CreateIndexes(ctx, db); err != nil {
		_ = Disconnect(client)
		return nil, err
	}

	return db, nil
}

// CreateIndexes creates the unique keys the store relies on to reject duplicates.
func CreateIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		DevicesCollection: {
			{
				Keys:    bson.D{{Key: "device_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "provider_id", Value: 1}},
			},
		},
		EventsCollection: {
			{
				Keys:    bson.D{{Key: "device_id", Value: 1}, {Key: "timestamp", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "provider_id", Value: 1}, {Key: "timestamp", Value: 1}},
			},
		},
		TelemetryCollection: {
			{
				Keys:    bson.D{{Key: "device_id", Value: 1}, {Key: "timestamp", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", collection, err)
		}
	}

	logger.Info("Database indexes created")
	return nil
}

// Disconnect closes the MongoDB connection
func Disconnect(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	logger.Info("Disconnected from MongoDB")
	return nil
}
