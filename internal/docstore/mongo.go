package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Reserved fields kept alongside the document body.
const (
	mongoParentField  = "_parent"
	mongoCreatedField = "_created"
)

// ConnectMongo dials uri and verifies the connection. Live queries need a
// replica set or sharded cluster for change streams.
func ConnectMongo(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(uri).SetServerSelectionTimeout(10 * time.Second)
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, client.Database(dbName), nil
}

// MongoStore maps each top-level collection to a MongoDB collection. A
// sub-collection path such as households/{id}/activities is stored in the
// collection named by its last segment with the parent path in _parent.
type MongoStore struct {
	db     *mongo.Database
	logger *slog.Logger
	now    func() time.Time
}

func NewMongoStore(db *mongo.Database, logger *slog.Logger) *MongoStore {
	return &MongoStore{
		db:     db,
		logger: logger.With("component", "docstore", "backend", "mongo"),
		now:    time.Now,
	}
}

func (s *MongoStore) NewID() string {
	return uuid.NewString()
}

// splitPath returns the MongoDB collection name and parent path for a
// collection path.
func splitPath(path string) (string, string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return path, ""
	}
	return path[i+1:], path[:i]
}

func (s *MongoStore) resolve(path string) (*mongo.Collection, bson.M) {
	name, parent := splitPath(path)
	scope := bson.M{mongoParentField: bson.M{"$exists": false}}
	if parent != "" {
		scope = bson.M{mongoParentField: parent}
	}
	return s.db.Collection(name), scope
}

func withScope(scope bson.M, extra bson.M) bson.M {
	out := bson.M{}
	for k, v := range scope {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	coll, scope := s.resolve(collection)

	var raw bson.M
	err := coll.FindOne(ctx, withScope(scope, bson.M{"_id": id})).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	snap, err := toSnapshot(raw)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func toSnapshot(raw bson.M) (Snapshot, error) {
	id, _ := raw["_id"].(string)
	delete(raw, "_id")
	delete(raw, mongoParentField)
	delete(raw, mongoCreatedField)

	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode document %s: %w", id, err)
	}
	return Snapshot{ID: id, Data: data}, nil
}

func mongoFilter(scope bson.M, filters []Filter) (bson.M, error) {
	out := withScope(scope, nil)
	for _, f := range filters {
		if err := f.validate(); err != nil {
			return nil, err
		}
		switch f.Op {
		case OpEq:
			out[f.Field] = f.Value
		case OpIn:
			values := f.Values
			if values == nil {
				values = []string{}
			}
			out[f.Field] = bson.M{"$in": values}
		default:
			return nil, fmt.Errorf("unknown filter op %d", f.Op)
		}
	}
	return out, nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error) {
	coll, scope := s.resolve(collection)
	filter, err := mongoFilter(scope, filters)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: mongoCreatedField, Value: 1}, {Key: "_id", Value: 1}})
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var snaps []Snapshot
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		snap, err := toSnapshot(raw)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, cur.Err()
}

func (s *MongoStore) Set(ctx context.Context, collection, id string, value any) error {
	data, err := encodeObject(value)
	if err != nil {
		return err
	}

	var doc bson.M
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return fmt.Errorf("convert %s/%s: %w", collection, id, err)
	}

	coll, scope := s.resolve(collection)
	_, parent := splitPath(collection)

	created := s.now().UnixMilli()
	var existing struct {
		Created int64 `bson:"_created"`
	}
	err = coll.FindOne(ctx, withScope(scope, bson.M{"_id": id}),
		options.FindOne().SetProjection(bson.M{mongoCreatedField: 1}),
	).Decode(&existing)
	if err == nil && existing.Created != 0 {
		created = existing.Created
	} else if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("read %s/%s: %w", collection, id, err)
	}

	doc["_id"] = id
	doc[mongoCreatedField] = created
	if parent != "" {
		doc[mongoParentField] = parent
	}

	_, err = coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) ArrayUnion(ctx context.Context, collection, id, field string, values ...string) error {
	return s.updateArray(ctx, collection, id, field, bson.M{"$addToSet": bson.M{field: bson.M{"$each": values}}})
}

func (s *MongoStore) ArrayRemove(ctx context.Context, collection, id, field string, values ...string) error {
	return s.updateArray(ctx, collection, id, field, bson.M{"$pullAll": bson.M{field: values}})
}

func (s *MongoStore) updateArray(ctx context.Context, collection, id, field string, update bson.M) error {
	if err := validateField(field); err != nil {
		return err
	}

	coll, scope := s.resolve(collection)
	res, err := coll.UpdateOne(ctx, withScope(scope, bson.M{"_id": id}), update)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	coll, scope := s.resolve(collection)
	if _, err := coll.DeleteOne(ctx, withScope(scope, bson.M{"_id": id})); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Watch re-runs the query on every change stream event of the underlying
// collection.
func (s *MongoStore) Watch(ctx context.Context, collection string, filters ...Filter) (*Subscription, error) {
	for _, f := range filters {
		if err := f.validate(); err != nil {
			return nil, err
		}
	}

	coll, _ := s.resolve(collection)
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := coll.Watch(streamCtx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", collection, err)
	}

	notify := make(chan struct{}, 1)
	go func() {
		defer close(notify)
		defer stream.Close(context.Background())
		for stream.Next(streamCtx) {
			select {
			case notify <- struct{}{}:
			default:
			}
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			s.logger.Warn("change stream ended", "collection", collection, "error", err)
		}
	}()

	query := func(ctx context.Context) ([]Snapshot, error) {
		return s.Query(ctx, collection, filters...)
	}
	return startWatch(ctx, notify, cancel, query, s.logger), nil
}
