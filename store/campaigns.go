package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"beatspace/apperr"
	"beatspace/database"
	"beatspace/models"
)

type CampaignRepository struct {
	coll database.Collection
}

type CampaignFilter struct {
	BuyerID  string
	Statuses []models.CampaignStatus
}

func (f CampaignFilter) query() bson.M {
	filter := bson.M{}
	if f.BuyerID != "" {
		filter["buyer_id"] = f.BuyerID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = stringsIn(f.Statuses)
	}
	return filter
}

func (r *CampaignRepository) Get(ctx context.Context, id string) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := getOne(ctx, r.coll, id, apperr.ErrCampaignNotFound, &campaign); err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *CampaignRepository) List(ctx context.Context, filter CampaignFilter) ([]models.Campaign, error) {
	campaigns := []models.Campaign{}
	if err := r.coll.Find(ctx, filter.query(), database.FindOptions{SortField: "created_at", SortDesc: true}, &campaigns); err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *CampaignRepository) Count(ctx context.Context, filter CampaignFilter) (int64, error) {
	return r.coll.CountDocuments(ctx, filter.query())
}

func (r *CampaignRepository) Insert(ctx context.Context, campaign *models.Campaign) error {
	if campaign.CampaignAssets == nil {
		campaign.CampaignAssets = []models.CampaignAsset{}
	}
	if err := r.coll.InsertOne(ctx, campaign); err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepository) Transition(ctx context.Context, id string, cond bson.M, update database.Update) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := transition(ctx, r.coll, id, cond, update, &campaign); err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *CampaignRepository) Delete(ctx context.Context, id string, cond bson.M) error {
	return deleteOne(ctx, r.coll, id, cond)
}
