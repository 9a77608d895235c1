package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const mockContentNamespace = "site.content"

func newMockMongoStore(mt *mtest.T) *mongoContentStore {
	return &mongoContentStore{
		client: mt.Client,
		col:    mt.Coll,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSeedUpdateOnlySetsOnInsert(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	update := seedUpdate(json.RawMessage(`{"hero":"Default"}`), now)

	require.Len(t, update, 1)
	fields, ok := update["$setOnInsert"].(bson.M)
	require.True(t, ok, "expected $setOnInsert, got %v", update)
	require.Equal(t, `{"hero":"Default"}`, fields["payload"])
	require.Equal(t, now, fields["updated_at"])
}

func TestMongoContentStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get returns stored payload", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(1, mockContentNamespace, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: mongoContentID},
			{Key: "payload", Value: `{"hero":"Welcome"}`},
			{Key: "updated_at", Value: time.Now().UTC()},
		}))

		doc, err := store.Get(context.Background())
		require.NoError(mt, err)
		require.Equal(mt, `{"hero":"Welcome"}`, string(doc))
	})

	mt.Run("get before seed is not found", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mockContentNamespace, mtest.FirstBatch))

		_, err := store.Get(context.Background())
		require.True(mt, errors.Is(err, ErrContentNotFound), "got %v", err)
	})

	mt.Run("put upserts", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		require.NoError(mt, store.Put(context.Background(), json.RawMessage(`{"hero":"Welcome"}`)))
	})

	mt.Run("seed inserts when absent", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: mongoContentID}}}},
		))

		require.NoError(mt, store.EnsureSeeded(context.Background(), json.RawMessage(`{}`)))
	})

	mt.Run("seed is a no-op when present", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
		))

		require.NoError(mt, store.EnsureSeeded(context.Background(), json.RawMessage(`{}`)))
	})

	mt.Run("seed tolerates losing the upsert race", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: site.content index: _id_",
		}))

		require.NoError(mt, store.EnsureSeeded(context.Background(), json.RawMessage(`{}`)))
	})

	mt.Run("seed reports other failures", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad update",
		}))

		require.Error(mt, store.EnsureSeeded(context.Background(), json.RawMessage(`{}`)))
	})
}
