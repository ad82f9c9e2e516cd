package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/akave-ai/servicelogs/internal/model"
)

// MongoRepository stores log entries as documents in a single collection.
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoRepository returns a MongoRepository over coll.
func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{
		coll: coll,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Find returns matching entries sorted by created descending.
func (r *MongoRepository) Find(ctx context.Context, f Filter, opts FindOptions) ([]model.LogEntry, error) {
	cur, err := r.coll.Find(ctx, mongoFilter(f), mongoFindOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("find logs: %w", err)
	}
	logs := []model.LogEntry{}
	if err := cur.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("decode logs: %w", err)
	}
	return logs, nil
}

// FindByID returns the entry or nil when it does not exist for appID.
func (r *MongoRepository) FindByID(ctx context.Context, appID, id string) (*model.LogEntry, error) {
	var e model.LogEntry
	err := r.coll.FindOne(ctx, byID(appID, id)).Decode(&e)
	return decodeOne(&e, err, "find log")
}

// Insert stores e. Timestamps are cut to milliseconds, the precision BSON
// dates keep, so the returned entry equals what a later read yields.
func (r *MongoRepository) Insert(ctx context.Context, e *model.LogEntry) (*model.LogEntry, error) {
	stored := *e
	stored.Created = stored.Created.UTC().Truncate(time.Millisecond)
	stored.Received = r.now().Truncate(time.Millisecond)
	if _, err := r.coll.InsertOne(ctx, stored); err != nil {
		return nil, fmt.Errorf("insert log: %w", err)
	}
	return &stored, nil
}

// UpdateByID applies ch with $set and returns the document as it was before.
func (r *MongoRepository) UpdateByID(ctx context.Context, appID, id string, ch model.Changes) (*model.LogEntry, error) {
	var e model.LogEntry
	err := r.coll.FindOneAndUpdate(ctx, byID(appID, id), mongoUpdate(ch),
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&e)
	return decodeOne(&e, err, "update log")
}

// DeleteByID removes the document and returns it.
func (r *MongoRepository) DeleteByID(ctx context.Context, appID, id string) (*model.LogEntry, error) {
	var e model.LogEntry
	err := r.coll.FindOneAndDelete(ctx, byID(appID, id)).Decode(&e)
	return decodeOne(&e, err, "delete log")
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, readpref.Primary())
}

// MongoIndexes lists the indexes the logs collection needs.
func MongoIndexes() []mongo.IndexModel {
	keys := []string{"app_id", model.FieldLevel, model.FieldModule, model.FieldRequestID, model.FieldVisitorID, model.FieldCreated}
	indexes := make([]mongo.IndexModel, 0, len(keys)+1)
	for _, k := range keys {
		indexes = append(indexes, mongo.IndexModel{Keys: bson.D{{Key: k, Value: 1}}})
	}
	// serves the default search: one app, newest first
	indexes = append(indexes, mongo.IndexModel{Keys: bson.D{{Key: "app_id", Value: 1}, {Key: model.FieldCreated, Value: -1}}})
	return indexes
}

func decodeOne(e *model.LogEntry, err error, op string) (*model.LogEntry, error) {
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

func byID(appID, id string) bson.M {
	return bson.M{"_id": id, "app_id": appID}
}

func mongoFilter(f Filter) bson.M {
	filter := bson.M{"app_id": f.AppID}
	if f.Level != "" {
		filter[model.FieldLevel] = f.Level
	}
	if f.Module != "" {
		filter[model.FieldModule] = f.Module
	}
	if f.RequestID != "" {
		filter[model.FieldRequestID] = f.RequestID
	}
	if f.VisitorID != "" {
		filter[model.FieldVisitorID] = f.VisitorID
	}
	created := bson.M{}
	if f.CreatedAfter != nil {
		created["$gt"] = *f.CreatedAfter
	}
	if f.CreatedBefore != nil {
		created["$lt"] = *f.CreatedBefore
	}
	if len(created) > 0 {
		filter[model.FieldCreated] = created
	}
	return filter
}

func mongoFindOptions(opts FindOptions) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: model.FieldCreated, Value: -1}}).
		SetLimit(int64(opts.Limit)).
		SetSkip(int64(opts.Offset))
}

func mongoUpdate(ch model.Changes) bson.M {
	set := bson.M{}
	for k, v := range ch {
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Truncate(time.Millisecond)
		}
		set[k] = v
	}
	return bson.M{"$set": set}
}
