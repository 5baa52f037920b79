// Package store provides typed repositories over the document collections.
// Documents are addressed by their domain id; the storage _id is never
// decoded into the models, so it never reaches a response payload.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"beatspace/apperr"
	"beatspace/database"
)

// ErrNoMatch reports that a conditional write found no document in the expected state.
var ErrNoMatch = errors.New("store: no document matched the update condition")

type Store struct {
	Assets    *AssetRepository
	Offers    *OfferRepository
	Campaigns *CampaignRepository
	Users     *UserRepository
	Audit     *AuditRepository

	db database.Database
}

func New(db database.Database) *Store {
	return &Store{
		Assets:    &AssetRepository{coll: db.Collection(database.AssetsCollection)},
		Offers:    &OfferRepository{coll: db.Collection(database.OfferRequestsCollection)},
		Campaigns: &CampaignRepository{coll: db.Collection(database.CampaignsCollection)},
		Users:     &UserRepository{coll: db.Collection(database.UsersCollection)},
		Audit:     &AuditRepository{coll: db.Collection(database.AuditLogsCollection)},
		db:        db,
	}
}

// NewMemory returns a Store backed by the in-memory database.
func NewMemory() *Store {
	return New(database.NewMemoryDatabase())
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func byID(id string, cond bson.M) bson.M {
	filter := bson.M{"id": id}
	for key, value := range cond {
		filter[key] = value
	}
	return filter
}

func getOne(ctx context.Context, coll database.Collection, id string, notFound error, out any) error {
	err := coll.FindOne(ctx, bson.M{"id": id}, out)
	if errors.Is(err, database.ErrNoDocuments) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("find %s: %w", id, err)
	}
	return nil
}

// transition applies a conditional update and decodes the post-update document.
func transition(ctx context.Context, coll database.Collection, id string, cond bson.M, update database.Update, out any) error {
	err := coll.FindOneAndUpdate(ctx, byID(id, cond), update, out)
	if errors.Is(err, database.ErrNoDocuments) {
		return ErrNoMatch
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	return nil
}

func deleteOne(ctx context.Context, coll database.Collection, id string, cond bson.M) error {
	deleted, err := coll.DeleteOne(ctx, byID(id, cond))
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if deleted == 0 {
		return ErrNoMatch
	}
	return nil
}

func mapNotFound(err error, notFound *apperr.Error) error {
	if errors.Is(err, ErrNoMatch) {
		return notFound
	}
	return err
}

func stringsIn[T ~string](values []T) bson.M {
	list := make([]string, 0, len(values))
	for _, v := range values {
		list = append(list, string(v))
	}
	return bson.M{"$in": list}
}
