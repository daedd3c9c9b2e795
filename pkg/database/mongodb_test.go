package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestCreateIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("created", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		assert.NoError(mt, CreateIndexes(context.Background(), mt.DB))
	})

	mt.Run("command error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    86,
			Name:    "IndexKeySpecsConflict",
			Message: "index already exists with different options",
		}))

		assert.Error(mt, CreateIndexes(context.Background(), mt.DB))
	})
}

func TestConnectMongo_InvalidURI(t *testing.T) {
	_, err := ConnectMongo("not-a-uri", "mds")
	assert.ErrorContains(t, err, "invalid MongoDB URI")
}

func TestConnectMongo_Unreachable(t *testing.T) {
	// nothing listens on port 1
	_, err := ConnectMongo("mongodb://127.0.0.1:1/mds?serverSelectionTimeoutMS=200&connectTimeoutMS=200", "mds")
	assert.ErrorContains(t, err, "failed to ping MongoDB")
}
