// models/asset.go
package models

import (
	"time"
)

type AssetStatus string

const (
	AssetAvailable       AssetStatus = "Available"
	AssetPendingOffer    AssetStatus = "Pending Offer"
	AssetNegotiating     AssetStatus = "Negotiating"
	AssetBooked          AssetStatus = "Booked"
	AssetWorkInProgress  AssetStatus = "Work in Progress"
	AssetLive            AssetStatus = "Live"
	AssetCompleted       AssetStatus = "Completed"
	AssetPendingApproval AssetStatus = "Pending Approval"
	AssetUnavailable     AssetStatus = "Unavailable"
)

// BuyerHeldStatuses are the asset statuses in which a buyer owns the placement slot.
var BuyerHeldStatuses = []AssetStatus{AssetBooked, AssetLive, AssetWorkInProgress, AssetCompleted}

// OfferHoldStatuses are the asset statuses held by a single active offer request.
var OfferHoldStatuses = []AssetStatus{AssetPendingOffer, AssetNegotiating}

func (s AssetStatus) IsBuyerHeld() bool {
	for _, held := range BuyerHeldStatuses {
		if s == held {
			return true
		}
	}
	return false
}

func (s AssetStatus) IsOfferHold() bool {
	return s == AssetPendingOffer || s == AssetNegotiating
}

func (s AssetStatus) Valid() bool {
	switch s {
	case AssetAvailable, AssetPendingOffer, AssetNegotiating, AssetBooked, AssetWorkInProgress,
		AssetLive, AssetCompleted, AssetPendingApproval, AssetUnavailable:
		return true
	}
	return false
}

type AssetType string

const (
	AssetTypeBillboard       AssetType = "Billboard"
	AssetTypePoliceBox       AssetType = "Police Box"
	AssetTypeRoadsideBarrier AssetType = "Roadside Barrier"
	AssetTypeTrafficOverhead AssetType = "Traffic Height Restriction Overhead"
	AssetTypeRailwayStation  AssetType = "Railway Station"
	AssetTypeMarket          AssetType = "Market"
	AssetTypeWall            AssetType = "Wall"
	AssetTypeBridge          AssetType = "Bridge"
	AssetTypeBusStop         AssetType = "Bus Stop"
	AssetTypeOthers          AssetType = "Others"
)

func (t AssetType) Valid() bool {
	switch t {
	case AssetTypeBillboard, AssetTypePoliceBox, AssetTypeRoadsideBarrier, AssetTypeTrafficOverhead,
		AssetTypeRailwayStation, AssetTypeMarket, AssetTypeWall, AssetTypeBridge, AssetTypeBusStop,
		AssetTypeOthers:
		return true
	}
	return false
}

type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

type Asset struct {
	ID                string             `bson:"id" json:"id"`
	Name              string             `bson:"name" json:"name"`
	Description       string             `bson:"description,omitempty" json:"description,omitempty"`
	Type              AssetType          `bson:"type" json:"type"`
	Address           string             `bson:"address" json:"address"`
	District          string             `bson:"district,omitempty" json:"district,omitempty"`
	Division          string             `bson:"division,omitempty" json:"division,omitempty"`
	Location          Location           `bson:"location" json:"location"`
	Dimensions        string             `bson:"dimensions,omitempty" json:"dimensions,omitempty"`
	Pricing           map[string]float64 `bson:"pricing,omitempty" json:"pricing"`
	Photos            []string           `bson:"photos,omitempty" json:"photos"`
	Status            AssetStatus        `bson:"status" json:"status"`
	SellerID          string             `bson:"seller_id" json:"seller_id"`
	SellerName        string             `bson:"seller_name,omitempty" json:"seller_name,omitempty"`
	BuyerID           *string            `bson:"buyer_id,omitempty" json:"buyer_id"`
	BuyerName         *string            `bson:"buyer_name,omitempty" json:"buyer_name"`
	NextAvailableDate *time.Time         `bson:"next_available_date,omitempty" json:"next_available_date"`
	OfferID           *string            `bson:"offer_id,omitempty" json:"offer_id,omitempty"`
	CreativeTags      []string           `bson:"creative_tags,omitempty" json:"creative_tags"`
	CreativeTimeline  *time.Time         `bson:"creative_timeline,omitempty" json:"creative_timeline"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}

// PublicAsset is the catalog projection served without authentication.
type PublicAsset struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	Type              AssetType          `json:"type"`
	Address           string             `json:"address"`
	District          string             `json:"district,omitempty"`
	Division          string             `json:"division,omitempty"`
	Location          Location           `json:"location"`
	Dimensions        string             `json:"dimensions,omitempty"`
	Pricing           map[string]float64 `json:"pricing"`
	Photos            []string           `json:"photos"`
	Status            AssetStatus        `json:"status"`
	NextAvailableDate *time.Time         `json:"next_available_date"`
}

func (a Asset) Public() PublicAsset {
	return PublicAsset{
		ID:                a.ID,
		Name:              a.Name,
		Description:       a.Description,
		Type:              a.Type,
		Address:           a.Address,
		District:          a.District,
		Division:          a.Division,
		Location:          a.Location,
		Dimensions:        a.Dimensions,
		Pricing:           a.Pricing,
		Photos:            a.Photos,
		Status:            a.Status,
		NextAvailableDate: a.NextAvailableDate,
	}
}
