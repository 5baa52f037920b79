// models/audit_log.go
package models

import (
	"time"
)

// AuditLog records one committed lifecycle transition.
type AuditLog struct {
	ID         string         `bson:"id" json:"id"`
	ActorID    string         `bson:"actor_id" json:"actor_id"`
	ActorRole  Role           `bson:"actor_role" json:"actor_role"`
	Action     string         `bson:"action" json:"action"` // e.g. "offer_quoted", "campaign_completed"
	EntityType string         `bson:"entity_type" json:"entity_type"`
	EntityID   string         `bson:"entity_id" json:"entity_id"`
	FromStatus string         `bson:"from_status,omitempty" json:"from_status,omitempty"`
	ToStatus   string         `bson:"to_status,omitempty" json:"to_status,omitempty"`
	Details    map[string]any `bson:"details,omitempty" json:"details,omitempty"`
	CreatedAt  time.Time      `bson:"created_at" json:"created_at"`
}
