package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"beatspace/apperr"
	"beatspace/database"
	"beatspace/models"
)

type OfferRepository struct {
	coll database.Collection
}

type OfferFilter struct {
	BuyerID    string
	AssetID    string
	AssetIDs   []string
	CampaignID string
	Statuses   []models.OfferStatus
}

func (f OfferFilter) query() bson.M {
	filter := bson.M{}
	if f.BuyerID != "" {
		filter["buyer_id"] = f.BuyerID
	}
	if f.AssetID != "" {
		filter["asset_id"] = f.AssetID
	} else if f.AssetIDs != nil {
		filter["asset_id"] = stringsIn(f.AssetIDs)
	}
	if f.CampaignID != "" {
		filter["existing_campaign_id"] = f.CampaignID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = stringsIn(f.Statuses)
	}
	return filter
}

func (r *OfferRepository) Get(ctx context.Context, id string) (*models.OfferRequest, error) {
	var offer models.OfferRequest
	if err := getOne(ctx, r.coll, id, apperr.ErrRequestNotFound, &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

// List returns matching requests, newest first.
func (r *OfferRepository) List(ctx context.Context, filter OfferFilter) ([]models.OfferRequest, error) {
	offers := []models.OfferRequest{}
	if err := r.coll.Find(ctx, filter.query(), database.FindOptions{SortField: "created_at", SortDesc: true}, &offers); err != nil {
		return nil, fmt.Errorf("list offer requests: %w", err)
	}
	return offers, nil
}

func (r *OfferRepository) Count(ctx context.Context, filter OfferFilter) (int64, error) {
	return r.coll.CountDocuments(ctx, filter.query())
}

// ActiveForAsset lists the requests currently holding assetID.
func (r *OfferRepository) ActiveForAsset(ctx context.Context, assetID string) ([]models.OfferRequest, error) {
	return r.List(ctx, OfferFilter{AssetID: assetID, Statuses: models.ActiveOfferStatuses})
}

func (r *OfferRepository) Insert(ctx context.Context, offer *models.OfferRequest) error {
	if err := r.coll.InsertOne(ctx, offer); err != nil {
		return fmt.Errorf("insert offer request: %w", err)
	}
	return nil
}

func (r *OfferRepository) Transition(ctx context.Context, id string, cond bson.M, update database.Update) (*models.OfferRequest, error) {
	var offer models.OfferRequest
	if err := transition(ctx, r.coll, id, cond, update, &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *OfferRepository) Delete(ctx context.Context, id string, cond bson.M) error {
	return deleteOne(ctx, r.coll, id, cond)
}
