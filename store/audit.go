package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"beatspace/database"
	"beatspace/models"
)

type AuditRepository struct {
	coll database.Collection
}

func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditLog) error {
	if err := r.coll.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// List returns audit entries newest first, optionally for one entity.
func (r *AuditRepository) List(ctx context.Context, entityID string, limit int64) ([]models.AuditLog, error) {
	filter := bson.M{}
	if entityID != "" {
		filter["entity_id"] = entityID
	}
	entries := []models.AuditLog{}
	opts := database.FindOptions{SortField: "created_at", SortDesc: true, Limit: limit}
	if err := r.coll.Find(ctx, filter, opts, &entries); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, nil
}
