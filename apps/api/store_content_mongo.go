package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoContentCollection = "content"
	mongoContentID         = "site"
)

type mongoContentRecord struct {
	ID        string    `bson:"_id"`
	Payload   string    `bson:"payload"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// mongoContentStore keeps the document as JSON text in one record with a fixed _id.
type mongoContentStore struct {
	client *mongo.Client
	col    *mongo.Collection
	log    *slog.Logger
}

func openMongoContentStore(ctx context.Context, uri, database string, logger *slog.Logger) (*mongoContentStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &mongoContentStore{
		client: client,
		col:    client.Database(database).Collection(mongoContentCollection),
		log:    logger,
	}, nil
}

func (m *mongoContentStore) Get(ctx context.Context) (json.RawMessage, error) {
	var rec mongoContentRecord
	err := m.col.FindOne(ctx, bson.M{"_id": mongoContentID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find content: %w", err)
	}
	return json.RawMessage(rec.Payload), nil
}

func (m *mongoContentStore) Put(ctx context.Context, doc json.RawMessage) error {
	rec := mongoContentRecord{ID: mongoContentID, Payload: string(doc), UpdatedAt: time.Now().UTC()}
	_, err := m.col.ReplaceOne(ctx, bson.M{"_id": mongoContentID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace content: %w", err)
	}
	return nil
}

// seedUpdate only writes fields when the upsert inserts, so an existing
// document is left untouched.
func seedUpdate(doc json.RawMessage, now time.Time) bson.M {
	return bson.M{"$setOnInsert": bson.M{
		"payload":    string(doc),
		"updated_at": now.UTC(),
	}}
}

func (m *mongoContentStore) EnsureSeeded(ctx context.Context, doc json.RawMessage) error {
	update := seedUpdate(doc, time.Now())
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": mongoContentID}, update, options.Update().SetUpsert(true))
	if err != nil {
		// a concurrent seed won the upsert race
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("seed content: %w", err)
	}
	if res.UpsertedCount > 0 {
		m.log.Info("seeded site content", "bytes", len(doc), "backend", "mongodb")
	}
	return nil
}

func (m *mongoContentStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *mongoContentStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
