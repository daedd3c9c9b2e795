package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mds-backend/internal/models"
	"mds-backend/pkg/database"
)

const duplicateKeyCode = 11000

type TelemetryRepository struct {
	collection *mongo.Collection
}

func NewTelemetryRepository(db *mongo.Database) *TelemetryRepository {
	return &TelemetryRepository{
		collection: db.Collection(database.TelemetryCollection),
	}
}

// InsertNew inserts every sample it can and returns the ones that were not already stored.
// Duplicates are skipped, not reported as errors.
func (r *TelemetryRepository) InsertNew(ctx context.Context, telemetry []*models.Telemetry) ([]*models.Telemetry, error) {
	if len(telemetry) == 0 {
		return []*models.Telemetry{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	docs := make([]interface{}, len(telemetry))
	for i, t := range telemetry {
		docs[i] = t
	}

	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return telemetry, nil
	}

	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) || bulkErr.WriteConcernError != nil {
		return nil, err
	}

	skipped := make(map[int]bool, len(bulkErr.WriteErrors))
	for _, writeErr := range bulkErr.WriteErrors {
		if writeErr.Code != duplicateKeyCode {
			return nil, err
		}
		skipped[writeErr.Index] = true
	}

	recorded := make([]*models.Telemetry, 0, len(telemetry)-len(skipped))
	for i, t := range telemetry {
		if !skipped[i] {
			recorded = append(recorded, t)
		}
	}
	return recorded, nil
}
