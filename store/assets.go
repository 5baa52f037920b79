package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"beatspace/apperr"
	"beatspace/database"
	"beatspace/models"
)

type AssetRepository struct {
	coll database.Collection
}

type AssetFilter struct {
	IDs      []string
	SellerID string
	BuyerID  string
	Statuses []models.AssetStatus
}

func (f AssetFilter) query() bson.M {
	filter := bson.M{}
	if len(f.IDs) > 0 {
		filter["id"] = stringsIn(f.IDs)
	}
	if f.SellerID != "" {
		filter["seller_id"] = f.SellerID
	}
	if f.BuyerID != "" {
		filter["buyer_id"] = f.BuyerID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = stringsIn(f.Statuses)
	}
	return filter
}

func (r *AssetRepository) Get(ctx context.Context, id string) (*models.Asset, error) {
	var asset models.Asset
	if err := getOne(ctx, r.coll, id, apperr.ErrAssetNotFound, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *AssetRepository) List(ctx context.Context, filter AssetFilter) ([]models.Asset, error) {
	assets := []models.Asset{}
	if err := r.coll.Find(ctx, filter.query(), database.FindOptions{SortField: "created_at", SortDesc: true}, &assets); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

func (r *AssetRepository) Count(ctx context.Context, filter AssetFilter) (int64, error) {
	return r.coll.CountDocuments(ctx, filter.query())
}

func (r *AssetRepository) Insert(ctx context.Context, asset *models.Asset) error {
	if err := r.coll.InsertOne(ctx, asset); err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// Transition updates the asset only if it still satisfies cond. It returns
// ErrNoMatch when the asset is missing or no longer in the expected state.
func (r *AssetRepository) Transition(ctx context.Context, id string, cond bson.M, update database.Update) (*models.Asset, error) {
	var asset models.Asset
	if err := transition(ctx, r.coll, id, cond, update, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *AssetRepository) Update(ctx context.Context, id string, update database.Update) (*models.Asset, error) {
	asset, err := r.Transition(ctx, id, nil, update)
	return asset, mapNotFound(err, apperr.ErrAssetNotFound)
}

func (r *AssetRepository) Delete(ctx context.Context, id string, cond bson.M) error {
	return deleteOne(ctx, r.coll, id, cond)
}
