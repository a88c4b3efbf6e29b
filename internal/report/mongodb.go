package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"evalgo.org/tsuite/models"
)

// DefaultCollection holds the run reports in MongoDB.
const DefaultCollection = "tsets"

// MongoConfig locates the MongoDB collection holding reports.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoStore keeps reports in a MongoDB collection.
type MongoStore struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

// NewMongoStore connects and pings the server.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	ctxConn, cancelConn := context.WithTimeout(ctx, cfg.Timeout)
	defer cancelConn()

	client, err := mongo.Connect(ctxConn, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(ctx, cfg.Timeout)
	defer cancelPing()

	if err := client.Ping(ctxPing, nil); err != nil {
		_ = client.Disconnect(ctxConn)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return &MongoStore{
		client:  client,
		coll:    client.Database(cfg.Database).Collection(cfg.Collection),
		timeout: cfg.Timeout,
	}, nil
}

// LatestRunID returns the tsid of the newest report.
func (s *MongoStore) LatestRunID(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "tsid", Value: -1}})

	var latest models.RunReport
	err := s.coll.FindOne(ctx, bson.D{}, opts).Decode(&latest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("finding latest report: %w", err)
	}
	return latest.RunID, nil
}

// Save inserts r.
func (s *MongoStore) Save(ctx context.Context, r *models.RunReport) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.coll.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// Close disconnects from the server.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	return s.client.Disconnect(ctx)
}
