// models/campaign.go
package models

import (
	"time"
)

type CampaignStatus string

const (
	CampaignDraft       CampaignStatus = "Draft"
	CampaignNegotiation CampaignStatus = "Negotiation"
	CampaignReady       CampaignStatus = "Ready"
	CampaignLive        CampaignStatus = "Live"
	CampaignCompleted   CampaignStatus = "Completed"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignNegotiation, CampaignReady, CampaignLive, CampaignCompleted:
		return true
	}
	return false
}

// CampaignAsset binds a booked asset to a campaign. Bindings are only added by the lifecycle.
type CampaignAsset struct {
	AssetID             string     `bson:"asset_id" json:"asset_id"`
	AssetName           string     `bson:"asset_name" json:"asset_name"`
	AssetStartDate      *time.Time `bson:"asset_start_date" json:"asset_start_date"`
	AssetExpirationDate *time.Time `bson:"asset_expiration_date" json:"asset_expiration_date"`
}

type Campaign struct {
	ID             string          `bson:"id" json:"id"`
	BuyerID        string          `bson:"buyer_id" json:"buyer_id"`
	BuyerName      string          `bson:"buyer_name,omitempty" json:"buyer_name,omitempty"`
	Name           string          `bson:"name" json:"name"`
	Description    string          `bson:"description,omitempty" json:"description,omitempty"`
	Budget         *float64        `bson:"budget,omitempty" json:"budget"`
	StartDate      *time.Time      `bson:"start_date,omitempty" json:"start_date"`
	EndDate        *time.Time      `bson:"end_date,omitempty" json:"end_date"`
	Status         CampaignStatus  `bson:"status" json:"status"`
	CampaignAssets []CampaignAsset `bson:"campaign_assets" json:"campaign_assets"`
	CreatedAt      time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at" json:"updated_at"`
}

func (c Campaign) HasAsset(assetID string) bool {
	for _, binding := range c.CampaignAssets {
		if binding.AssetID == assetID {
			return true
		}
	}
	return false
}
