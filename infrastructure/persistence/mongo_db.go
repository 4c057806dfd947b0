package persistence

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDb wraps a connected client plus the database handle used by the
// reference store.
type MongoDb struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongoDb connects to MongoDB; the reference store keeps its short-lived
// handles here.
func NewMongoDb(host, port, user, password, name string) (*MongoDb, error) {
	uri := fmt.Sprintf("mongodb://%s:%s", host, port)
	if user != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%s", user, password, host, port)
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetTimeout(10 * time.Second))
	if err != nil {
		return nil, err
	}
	return &MongoDb{Client: client, Database: client.Database(name)}, nil
}

// Ping verifies connectivity.
func (m *MongoDb) Ping(ctx context.Context) error {
	return m.Client.Ping(ctx, nil)
}
