// database/database.go
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	AssetsCollection        = "assets"
	OfferRequestsCollection = "offer_requests"
	CampaignsCollection     = "campaigns"
	UsersCollection         = "users"
	AuditLogsCollection     = "audit_logs"
)

// uniqueKeys lists the fields each collection keeps unique. The domain id is
// always unique; the storage _id never leaves this package.
var uniqueKeys = map[string][]string{
	AssetsCollection:        {"id"},
	OfferRequestsCollection: {"id"},
	CampaignsCollection:     {"id"},
	UsersCollection:         {"id", "email"},
	AuditLogsCollection:     {"id"},
}

// lookupKeys are non-unique secondary indexes used by the store queries.
var lookupKeys = map[string][]string{
	AssetsCollection:        {"status", "seller_id", "buyer_id"},
	OfferRequestsCollection: {"asset_id", "buyer_id", "status", "existing_campaign_id"},
	CampaignsCollection:     {"buyer_id"},
	AuditLogsCollection:     {"entity_id"},
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("MONGO_URL is required")
	}

	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(20 * time.Second).
		SetServerSelectionTimeout(15 * time.Second).
		SetMaxPoolSize(50)

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create MongoDB client: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 10*time.Second)
	defer cancelPing()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	slog.Info("connected to MongoDB", "event", "db_connected")
	return client, nil
}

func Disconnect(client *mongo.Client) {
	if client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		slog.Warn("MongoDB disconnect failed", "error", err)
	}
}

// EnsureIndexes creates the unique and lookup indexes every collection relies on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for name, fields := range uniqueKeys {
		models := make([]mongo.IndexModel, 0, len(fields)+len(lookupKeys[name]))
		for _, field := range fields {
			models = append(models, mongo.IndexModel{
				Keys:    bson.D{{Key: field, Value: 1}},
				Options: options.Index().SetUnique(true),
			})
		}
		for _, field := range lookupKeys[name] {
			models = append(models, mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}})
		}
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}
