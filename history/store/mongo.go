package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sweetpotato0/reasonchain/config"
	errorspkg "github.com/sweetpotato0/reasonchain/errors"
	"github.com/sweetpotato0/reasonchain/history"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements history.Store using MongoDB. A monotonically
// increasing seq field provides the submission order.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// mongoTrace is the internal representation for MongoDB
type mongoTrace struct {
	ID         string    `bson:"_id"`
	Seq        int64     `bson:"seq"`
	Content    string    `bson:"content"`
	TokenCount int       `bson:"token_count"`
	CreatedAt  time.Time `bson:"created_at"`
}

// NewMongoStore creates a new MongoDB-backed trace store
func NewMongoStore(cfg *config.MongoConfig) (*MongoStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mongo config cannot be nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(cfg.Database).Collection(cfg.Collection)

	store := &MongoStore{
		client:     client,
		collection: collection,
	}

	if err := store.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return store, nil
}

// createIndexes creates indexes for ordered retrieval
func (s *MongoStore) createIndexes(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "seq", Value: -1}},
	}

	_, err := s.collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

// Append adds a trace to the end of the history.
func (s *MongoStore) Append(ctx context.Context, trace *history.Trace) error {
	if trace == nil {
		return fmt.Errorf("trace cannot be nil")
	}

	if trace.CreatedAt.IsZero() {
		trace.CreatedAt = time.Now()
	}

	doc := mongoTrace{
		ID:         trace.ID,
		Seq:        time.Now().UnixNano(),
		Content:    trace.Content,
		TokenCount: trace.TokenCount,
		CreatedAt:  trace.CreatedAt,
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert trace: %w", err)
	}
	return nil
}

// Last returns the most recently appended trace.
func (s *MongoStore) Last(ctx context.Context) (*history.Trace, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})

	var doc mongoTrace
	err := s.collection.FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, errorspkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last trace: %w", err)
	}
	return docToTrace(&doc), nil
}

// Len returns the number of traces in the history.
func (s *MongoStore) Len(ctx context.Context) (int, error) {
	count, err := s.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count traces: %w", err)
	}
	return int(count), nil
}

// List returns all traces in submission order.
func (s *MongoStore) List(ctx context.Context) ([]*history.Trace, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})

	cursor, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer cursor.Close(ctx)

	traces := make([]*history.Trace, 0)
	for cursor.Next(ctx) {
		var doc mongoTrace
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode trace: %w", err)
		}
		traces = append(traces, docToTrace(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate traces: %w", err)
	}
	return traces, nil
}

// Clear removes all traces.
func (s *MongoStore) Clear(ctx context.Context) error {
	if _, err := s.collection.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("failed to clear traces: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func docToTrace(doc *mongoTrace) *history.Trace {
	return &history.Trace{
		ID:         doc.ID,
		Content:    doc.Content,
		TokenCount: doc.TokenCount,
		CreatedAt:  doc.CreatedAt,
	}
}
