package backend

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on MongoDB. Live queries are emulated by
// re-running the query whenever the collection's change stream reports
// an event, which preserves the full-snapshot delivery contract.
// Change streams require a replica set deployment.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to MongoDB and returns a new MongoStore
func NewMongoStore(uri, database string) (*MongoStore, error) {
	clientOptions := options.Client().ApplyURI(uri)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the primary to verify connection
	if err = client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Println("Successfully connected to MongoDB!")
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// Close disconnects the underlying client
func (s *MongoStore) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		log.Printf("Error closing MongoDB connection: %v\n", err)
	} else {
		log.Println("MongoDB connection closed.")
	}
}

// collName maps a slash-joined collection path onto a flat collection
// name; Mongo has no subcollections.
func collName(path string) string {
	return strings.ReplaceAll(path, "/", ".")
}

// normalize converts driver-specific value types back to the generic
// ones the rest of the code reads.
func normalize(v any) any {
	switch t := v.(type) {
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case int32:
		return int(t)
	case int64:
		return int(t)
	default:
		return v
	}
}

func decodeDoc(raw bson.M) *Document {
	id, _ := raw["_id"].(string)
	data := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		data[k] = normalize(v)
	}
	return &Document{ID: id, Data: data}
}

// mongoUpdate splits a generic field map into the $set / $addToSet /
// $currentDate clauses of an update document.
func mongoUpdate(data map[string]any) bson.M {
	set := bson.M{}
	addToSet := bson.M{}
	currentDate := bson.M{}
	for k, v := range data {
		switch t := v.(type) {
		case serverTimestampValue:
			currentDate[k] = true
		case arrayUnionValue:
			addToSet[k] = bson.M{"$each": t.values}
		default:
			set[k] = v
		}
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	if len(currentDate) > 0 {
		update["$currentDate"] = currentDate
	}
	return update
}

// mongoDocument resolves markers in place for full-document writes.
func mongoDocument(id string, data map[string]any) bson.M {
	doc := bson.M{"_id": id}
	for k, v := range data {
		switch t := v.(type) {
		case serverTimestampValue:
			doc[k] = time.Now().UTC()
		case arrayUnionValue:
			doc[k] = t.values
		default:
			doc[k] = v
		}
	}
	return doc
}

func (s *MongoStore) Get(ctx context.Context, path, id string) (*Document, error) {
	var raw bson.M
	err := s.db.Collection(collName(path)).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotExists
		}
		return nil, fmt.Errorf("mongo get %s/%s: %w", path, id, err)
	}
	return decodeDoc(raw), nil
}

func (s *MongoStore) GetAll(ctx context.Context, path string, ids []string) ([]*Document, error) {
	cur, err := s.db.Collection(collName(path)).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("mongo batched get %s: %w", path, err)
	}
	defer cur.Close(ctx)

	byID := make(map[string]*Document, len(ids))
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("mongo batched get %s: %w", path, err)
		}
		doc := decodeDoc(raw)
		byID[doc.ID] = doc
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo batched get %s: %w", path, err)
	}

	docs := make([]*Document, len(ids))
	for i, id := range ids {
		docs[i] = byID[id]
	}
	return docs, nil
}

func (s *MongoStore) Query(ctx context.Context, path string, filters []Filter, orderBy string) ([]*Document, error) {
	filter := bson.M{}
	for _, f := range filters {
		filter[f.Field] = f.Value
	}

	opts := options.Find()
	if orderBy != "" {
		opts.SetSort(bson.D{{Key: orderBy, Value: 1}})
	}

	cur, err := s.db.Collection(collName(path)).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo query %s: %w", path, err)
	}
	defer cur.Close(ctx)

	var docs []*Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("mongo query %s: %w", path, err)
		}
		docs = append(docs, decodeDoc(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo query %s: %w", path, err)
	}
	return docs, nil
}

func (s *MongoStore) Add(ctx context.Context, path string, data map[string]any) (string, error) {
	id := primitive.NewObjectID().Hex()
	if _, err := s.db.Collection(collName(path)).InsertOne(ctx, mongoDocument(id, data)); err != nil {
		return "", fmt.Errorf("mongo add %s: %w", path, err)
	}
	return id, nil
}

func (s *MongoStore) Set(ctx context.Context, path, id string, data map[string]any, merge bool) error {
	col := s.db.Collection(collName(path))

	if merge {
		_, err := col.UpdateByID(ctx, id, mongoUpdate(data), options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("mongo merge set %s/%s: %w", path, id, err)
		}
		return nil
	}

	_, err := col.ReplaceOne(ctx, bson.M{"_id": id}, mongoDocument(id, data), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo set %s/%s: %w", path, id, err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, path, id string, data map[string]any) error {
	res, err := s.db.Collection(collName(path)).UpdateByID(ctx, id, mongoUpdate(data))
	if err != nil {
		return fmt.Errorf("mongo update %s/%s: %w", path, id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotExists
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, path, id string) error {
	if _, err := s.db.Collection(collName(path)).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("mongo delete %s/%s: %w", path, id, err)
	}
	return nil
}

func (s *MongoStore) Watch(ctx context.Context, path string, filters []Filter, orderBy string, fn func([]*Document)) (func(), error) {
	wctx, cancel := context.WithCancel(ctx)

	stream, err := s.db.Collection(collName(path)).Watch(wctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mongo watch %s: %w", path, err)
	}

	docs, err := s.Query(ctx, path, filters, orderBy)
	if err != nil {
		stream.Close(context.Background())
		cancel()
		return nil, err
	}
	fn(docs)

	go func() {
		defer stream.Close(context.Background())
		for stream.Next(wctx) {
			docs, err := s.Query(wctx, path, filters, orderBy)
			if err != nil {
				if wctx.Err() == nil {
					log.Printf("Mongo watch on %s: re-query failed: %v\n", path, err)
				}
				return
			}
			fn(docs)
		}
	}()

	return cancel, nil
}

func (s *MongoStore) WatchDoc(ctx context.Context, path, id string, fn func(*Document)) (func(), error) {
	wctx, cancel := context.WithCancel(ctx)

	pipeline := mongo.Pipeline{bson.D{{Key: "$match", Value: bson.M{"documentKey._id": id}}}}
	stream, err := s.db.Collection(collName(path)).Watch(wctx, pipeline)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mongo doc watch %s/%s: %w", path, id, err)
	}

	deliver := func(dctx context.Context) bool {
		doc, err := s.Get(dctx, path, id)
		if err != nil && err != ErrNotExists {
			if dctx.Err() == nil {
				log.Printf("Mongo doc watch on %s/%s: read failed: %v\n", path, id, err)
			}
			return false
		}
		fn(doc)
		return true
	}

	if !deliver(ctx) {
		stream.Close(context.Background())
		cancel()
		return nil, fmt.Errorf("mongo doc watch %s/%s: initial read failed", path, id)
	}

	go func() {
		defer stream.Close(context.Background())
		for stream.Next(wctx) {
			if !deliver(wctx) {
				return
			}
		}
	}()

	return cancel, nil
}
